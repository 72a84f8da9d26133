package table

import (
	"sync/atomic"
	"time"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// Mutable table configuration: management (when wired) can hot-swap these
// at runtime without the forwarder restarting, so each is a separate
// atomic rather than a struct guarded by a lock (spec.md §10.2).
var mutCfg = struct {
	csCapacity atomic.Int32
	csAdmit    atomic.Bool
	csServe    atomic.Bool
}{}

// Initialize creates the process-wide tables and loads their startup
// configuration. Must be called once before any forwarding thread starts.
func Initialize() {
	mutCfg.csCapacity.Store(int32(core.C.Tables.ContentStore.Capacity))
	mutCfg.csAdmit.Store(core.C.Tables.ContentStore.Admit)
	mutCfg.csServe.Store(core.C.Tables.ContentStore.Serve)

	CreateFIBTable()
	FibStrategyTable.SetStrategyEnc(ndn.Name{}, ndn.NameFromString(core.C.Tables.Strategy.Default))

	for _, region := range core.C.Tables.NetworkRegion.Regions {
		NetworkRegion.Add(ndn.NameFromString(region))
		core.Log.Debug(nil, "Added producer region", "name", region)
	}
}

// CreateFIBTable creates the FIB-Strategy table using the configured algorithm.
func CreateFIBTable() {
	switch core.C.Tables.Fib.Algorithm {
	case "nametree":
		newFibStrategyTableTree()
	default:
		core.Log.Fatal(nil, "Unknown FIB table algorithm", "algo", core.C.Tables.Fib.Algorithm)
	}
}

func CfgCsAdmit() bool         { return mutCfg.csAdmit.Load() }
func CfgSetCsAdmit(admit bool) { mutCfg.csAdmit.Store(admit) }

func CfgCsServe() bool         { return mutCfg.csServe.Load() }
func CfgSetCsServe(serve bool) { mutCfg.csServe.Store(serve) }

func CfgCsCapacity() int            { return int(mutCfg.csCapacity.Load()) }
func CfgSetCsCapacity(capacity int) { mutCfg.csCapacity.Store(int32(capacity)) }

func CfgCsReplacementPolicy() string {
	return core.C.Tables.ContentStore.ReplacementPolicy
}

func CfgDeadNonceListLifetime() time.Duration {
	return time.Duration(core.C.Tables.DeadNonceList.Lifetime) * time.Millisecond
}

func CfgDataNonceListLifetime() time.Duration {
	return time.Duration(core.C.Tables.DataNonceList.Lifetime) * time.Millisecond
}
