package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

const Version = "v1"

type System struct {
	storage *Storage
	loader  *BenchmarkLoader
	id      string
	meta    string
}

func NewSystem(storage *Storage, loader *BenchmarkLoader, id string, meta string) *System {
	return &System{storage: storage, loader: loader, id: id, meta: meta}
}

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

func HostStat() SysInfo {
	info := SysInfo{Arch: runtime.GOARCH}
	if hostStat, err := host.Info(); err == nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		totalFreq := 0.0
		for _, cpu := range cpuStat {
			totalFreq += cpu.Mhz
		}
		info.CPUCount = len(cpuStat)
		info.CPUFreq = totalFreq / float64(len(cpuStat)) * 1000
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
	}
	return info
}

// Plan expands the active descriptors for the sequence and stores the result
// in the meta database where a benchmark driver picks it up.
func (s *System) Plan(ctx context.Context, sequenceID string, createDb bool) (*LoadResult, error) {
	Logger.Infof("start planning sequence %v", sequenceID)

	info := HostStat()
	Logger.Infof("host stat: %+v", info)

	result, err := s.loader.LoadBenchmarks(ctx, sequenceID)
	if err != nil {
		return nil, err
	}

	if createDb {
		if err := s.storage.CreateDatabase(s.meta); err != nil {
			return nil, fmt.Errorf("unable to create plan db %v: %w", s.meta, err)
		}
	}
	db, err := s.storage.ConnectDb(s.meta)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to the plan db %v: %w", s.meta, err)
	}
	defer db.Close()

	if err := s.storage.InitPlanDb(db); err != nil {
		return nil, fmt.Errorf("unable to initialize plan db %v: %w", s.meta, err)
	}
	err = s.storage.AddParameters(db, sequenceID, map[string]any{
		"planner":    s.id,
		"version":    Version,
		"arch":       info.Arch,
		"hostname":   info.Hostname,
		"platform":   info.Platform,
		"ram":        info.RAM,
		"cpu":        info.CPUCount,
		"freq":       info.CPUFreq,
		"benchmarks": len(result.Benchmarks),
		"skipped":    len(result.Skipped),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to store plan parameters for %v: %w", sequenceID, err)
	}
	if err := s.storage.AddPlan(ctx, db, result.Benchmarks); err != nil {
		return nil, fmt.Errorf("unable to store plan for %v: %w", sequenceID, err)
	}
	Logger.Infof("stored %v benchmarks of sequence %v at %v", len(result.Benchmarks), sequenceID, s.storage.DbLink(s.meta))
	return result, nil
}

func (s *System) Stored(sequenceID string) ([]PlannedBenchmark, map[string]string, error) {
	db, err := s.storage.ConnectDb(s.meta)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to the plan db %v: %w", s.meta, err)
	}
	defer db.Close()

	if err := s.storage.InitPlanDb(db); err != nil {
		return nil, nil, fmt.Errorf("unable to initialize plan db %v: %w", s.meta, err)
	}
	plans, err := s.storage.FetchPlan(db, sequenceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch plan %v: %w", sequenceID, err)
	}
	parameters, err := s.storage.Parameters(db, sequenceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch plan parameters %v: %w", sequenceID, err)
	}
	return plans, parameters, nil
}
