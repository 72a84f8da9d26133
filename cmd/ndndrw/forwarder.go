package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/fw/fw"
	"github.com/jiangtaoluo/jet-NFD/fw/table"
	"github.com/jiangtaoluo/jet-NFD/std/utils"
	"github.com/jiangtaoluo/jet-NFD/std/utils/toolutils"
)

// Forwarder is the wrapper for the forwarding core, adapted from
// fw/executor/yanfd.go's YaNFD. It owns the process's forwarding threads and
// the dispatcher faces hand packets to. Unlike the teacher, it does not
// start any concrete face listeners (TCP/UDP/Unix/WebSocket/HTTP3): wire
// transports are explicitly out of scope for this module (spec.md
// Non-goals), so a Face implementation is supplied by whatever embeds this
// forwarding core, not by this binary.
type Forwarder struct {
	config     *core.Config
	profiler   *Profiler
	dispatcher *fw.Dispatcher
}

// NewForwarder creates a Forwarder. Don't call this function twice.
func NewForwarder(config *core.Config) *Forwarder {
	core.C = config
	core.StartTimestamp = time.Now()

	core.OpenLogger()
	table.Initialize()

	return &Forwarder{
		config:   config,
		profiler: NewProfiler(config),
	}
}

func (f *Forwarder) String() string { return "ndndrw" }

// Start launches the forwarding threads and returns, same as YaNFD.Start.
func (f *Forwarder) Start() {
	core.Log.Info(f, "Starting NDN forwarding core", "version", utils.NDNdVersion)

	f.profiler.Start()

	if fw.CfgNumThreads() < 1 || fw.CfgNumThreads() > fw.MaxFwThreads {
		core.Log.Fatal(f, "Number of forwarding threads out of range",
			"range", fmt.Sprintf("[1, %d]", fw.MaxFwThreads))
		os.Exit(2)
	}

	fw.Threads = make([]*fw.Thread, fw.CfgNumThreads())
	for i := range fw.CfgNumThreads() {
		fw.Threads[i] = fw.NewThread(i)
		go fw.Threads[i].Run()
	}
	f.dispatcher = fw.NewDispatcher()

	core.Log.Info(f, "Forwarding core ready", "threads", fw.CfgNumThreads())
}

// Stop tells every forwarding thread to quit and waits for them to finish.
func (f *Forwarder) Stop() {
	defer core.CloseLogger()

	core.Log.Info(f, "Stopping NDN forwarding core")
	defer core.Log.Info(f, "Stopped NDN forwarding core")

	core.ShouldQuit = true
	f.profiler.Stop()

	for _, t := range fw.Threads {
		t.TellToQuit()
	}
	for _, t := range fw.Threads {
		<-t.HasQuit
	}

	p := toolutils.StatusPrinter{File: os.Stdout, Padding: 18}
	for _, t := range fw.Threads {
		c := t.Counters()
		core.Log.Info(f, "Thread final counters", "thread", t.GetID(),
			"inInterests", c.NInInterests, "inData", c.NInData,
			"outInterests", c.NOutInterests, "outData", c.NOutData,
			"csHits", c.NCsHits, "csMisses", c.NCsMisses)

		fmt.Printf("Thread %d final counters:\n", t.GetID())
		p.Print("nPitEntries", c.NPitEntries)
		p.Print("nCsEntries", c.NCsEntries)
		p.Print("nInInterests", c.NInInterests)
		p.Print("nInData", c.NInData)
		p.Print("nOutInterests", c.NOutInterests)
		p.Print("nOutData", c.NOutData)
		p.Print("nSatisfiedInterests", c.NSatisfiedInterests)
		p.Print("nUnsatisfiedInterests", c.NUnsatisfiedInterests)
		p.Print("nCsHits", c.NCsHits)
		p.Print("nCsMisses", c.NCsMisses)
	}
}
