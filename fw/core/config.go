/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package core

import (
	"path/filepath"
)

// Global initial configuration of the forwarder.
// This configuration is IMMUTABLE. Do not modify it.
var C = DefaultConfig()

// Config represents the configuration of the forwarder.
type Config struct {
	Core struct {
		// Logging level
		LogLevel string `json:"log_level"`
		// Output log to file
		LogFile string `json:"log_file"`

		// Config file base dir
		BaseDir string `json:"-"`
		// Enable CPU profiling
		CpuProfile string `json:"-"`
		// Enable memory profiling
		MemProfile string `json:"-"`
		// Enable block profiling
		BlockProfile string `json:"-"`
	} `json:"core"`

	Fw struct {
		// Number of forwarding threads
		Threads int `json:"threads"`
		// Size of queues in the forwarding system
		QueueSize int `json:"queue_size"`
		// If true, forwarding threads will be locked to processor cores
		LockThreadsToCores bool `json:"lock_threads_to_cores"`
	} `json:"fw"`

	Tables struct {
		ContentStore struct {
			// Capacity of each forwarding thread's content store (in number of Data packets). Note that the
			// total capacity of all content stores in the forwarder will be the number of threads
			// multiplied by this value. This is the startup configuration value and can be changed at
			// runtime via management.
			Capacity uint16 `json:"capacity"`
			// Whether contents will be admitted to the Content Store.
			Admit bool `json:"admit"`
			// Whether contents will be served from the Content Store.
			Serve bool `json:"serve"`
			// Cache replacement policy to use in each thread's content store.
			ReplacementPolicy string `json:"replacement_policy"`
		} `json:"content_store"`

		DeadNonceList struct {
			// Lifetime of entries in the Dead Nonce List (milliseconds)
			Lifetime int `json:"lifetime"`
		} `json:"dead_nonce_list"`

		DataNonceList struct {
			// Lifetime of entries in the Data Nonce List, used to
			// de-duplicate emergency-flood Data (milliseconds).
			Lifetime int `json:"lifetime"`
		} `json:"data_nonce_list"`

		NetworkRegion struct {
			// List of prefixes that the forwarder is in the producer region for
			Regions []string `json:"regions"`
		} `json:"network_region"`

		Fib struct {
			// Selects the algorithm used to implement the FIB.
			// nametree is the only algorithm implemented.
			Algorithm string `json:"algorithm"`
		} `json:"fib"`

		// Strategy holds the defaults for the per-prefix Strategy Choice
		// table (spec.md §4.8, §5).
		Strategy struct {
			// Name of the strategy used for prefixes with no explicit
			// strategy choice registered.
			Default string `json:"default"`

			RandomWait struct {
				// Minimum/maximum of the uniform random relay delay
				// applied before forwarding an Interest (microseconds).
				DelayMinUs int `json:"delay_min_us"`
				DelayMaxUs int `json:"delay_max_us"`
				// Initial and maximum per-upstream retransmission
				// suppression window (milliseconds).
				RetxSuppressionInitialMs int `json:"retx_suppression_initial_ms"`
				RetxSuppressionMaxMs     int `json:"retx_suppression_max_ms"`
				// Spacing between scheduled retransmission attempts
				// (milliseconds).
				RetxTimerUnitMs int `json:"retx_timer_unit_ms"`
				// Maximum number of retransmissions before giving up on
				// an upstream.
				MaxRetxCount int `json:"max_retx_count"`
			} `json:"random_wait"`
		} `json:"strategy"`
	} `json:"tables"`
}

// DefaultConfig returns a Config populated with the forwarder's startup
// defaults.
func DefaultConfig() *Config {
	c := &Config{}
	c.Core.LogLevel = "INFO"
	c.Core.LogFile = ""

	c.Core.BaseDir = ""
	c.Core.CpuProfile = ""
	c.Core.MemProfile = ""
	c.Core.BlockProfile = ""

	c.Fw.Threads = 8
	c.Fw.QueueSize = 1024
	c.Fw.LockThreadsToCores = false

	c.Tables.ContentStore.Capacity = 1024
	c.Tables.ContentStore.Admit = true
	c.Tables.ContentStore.Serve = true
	c.Tables.ContentStore.ReplacementPolicy = "lru"

	c.Tables.DeadNonceList.Lifetime = 6000
	c.Tables.DataNonceList.Lifetime = 6000
	c.Tables.NetworkRegion.Regions = []string{}

	c.Tables.Fib.Algorithm = "nametree"

	c.Tables.Strategy.Default = "/localhost/nfd/strategy/best-route/v1"
	c.Tables.Strategy.RandomWait.DelayMinUs = 500
	c.Tables.Strategy.RandomWait.DelayMaxUs = 3000
	c.Tables.Strategy.RandomWait.RetxSuppressionInitialMs = 10
	c.Tables.Strategy.RandomWait.RetxSuppressionMaxMs = 250
	c.Tables.Strategy.RandomWait.RetxTimerUnitMs = 500
	c.Tables.Strategy.RandomWait.MaxRetxCount = 3

	return c
}

// ResolveRelPath resolves a possibly relative path based on config file path.
func (c *Config) ResolveRelPath(target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(c.Core.BaseDir, target)
}
