// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// sf-fuzz fuzzes the built-in arithmetic expression evaluator.
// It shows how a target, a grammar mutator and the fuzzer are wired together,
// and can be used to inspect and minify a persisted corpus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/structfuzz/pkg/fuzzer"
	"github.com/google/structfuzz/pkg/grammar"
	"github.com/google/structfuzz/pkg/log"
	"github.com/google/structfuzz/pkg/mutator"
	"github.com/google/structfuzz/pkg/osutil"
	"github.com/google/structfuzz/pkg/stat"
	"github.com/google/structfuzz/pkg/tool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

var (
	flagConfig  = flag.String("config", "", "fuzzer config file (JSON or YAML)")
	flagWorkdir = flag.String("workdir", "", "override workdir from the config")
	flagMinify  = flag.Int("minify", 0, "minify the corpus to at most that many inputs and exit")
	flagHTTP    = flag.String("http", "", "serve Prometheus metrics on this address")
	flagStats   = flag.Duration("stats", 10*time.Second, "period of stats printed to console")
	flagSave    = flag.String("save-config", "", "write the effective config to this file and exit")
)

func main() {
	defer tool.Init()()
	log.EnableLogCaching(1000, 1<<20)
	cfg := fuzzer.DefaultConfig()
	if *flagConfig != "" {
		var err error
		if cfg, err = fuzzer.LoadConfigFile(*flagConfig); err != nil {
			tool.Failf("failed to load config: %v", err)
		}
	}
	if *flagWorkdir != "" {
		cfg.Workdir = *flagWorkdir
	}
	if *flagSave != "" {
		if err := fuzzer.SaveConfigFile(*flagSave, cfg); err != nil {
			tool.Failf("failed to save config: %v", err)
		}
		return
	}
	cfg.Logf = log.Prefix("calc").Logf
	cfg.OnEvent = func(ev fuzzer.Event, st fuzzer.Stats) {
		switch ev.Kind {
		case fuzzer.EventNew, fuzzer.EventReplace, fuzzer.EventReplaceLowestStack, fuzzer.EventRemove:
			if !log.V(1) {
				return
			}
		case fuzzer.EventTestFailure:
			saveLog(cfg, ev.Artifact)
		}
		log.Logf(0, "%v: runs %v, score %v, pool %v, %.0f exec/s",
			ev, st.TotalRuns, st.Score, st.PoolSize, st.ExecPerSec)
	}
	if cfg.Seed != 0 {
		mutator.SetSeed(cfg.Seed)
	}
	f, err := fuzzer.New[string](cfg, grammar.NewStringMutator(calcGrammar()),
		fuzzer.StringSerializer{}, calcTarget, nil)
	if err != nil {
		tool.Fail(err)
	}
	if *flagMinify != 0 {
		if err := f.MinifyCorpus(*flagMinify); err != nil {
			tool.Fail(err)
		}
		return
	}
	err = run(context.Background(), f)
	printStats(f.StatSet(), stat.All)
	for _, file := range f.Failures() {
		log.Logf(0, "failing input: %v", file)
	}
	if errors.Is(err, fuzzer.ErrFailure) {
		os.Exit(1)
	}
	if err != nil {
		tool.Fail(err)
	}
}

func run(ctx context.Context, f *fuzzer.Fuzzer[string]) error {
	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown, func(sig os.Signal) {
		f.CaughtSignal(signalName(sig))
	})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return f.Run(ctx)
	})
	eg.Go(func() error {
		ticker := time.NewTicker(*flagStats)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				printStats(f.StatSet(), stat.Console)
				f.ResetStats()
			}
		}
	})
	if *flagHTTP != "" {
		srv := &http.Server{
			Addr:    *flagHTTP,
			Handler: promhttp.HandlerFor(f.StatSet().Registry(), promhttp.HandlerOpts{}),
		}
		eg.Go(func() error {
			log.Logf(0, "serving metrics on http://%v/", *flagHTTP)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve metrics: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}
	return eg.Wait()
}

func printStats(set *stat.Set, level stat.Level) {
	var parts []string
	for _, v := range set.Collect(level) {
		parts = append(parts, fmt.Sprintf("%v: %v", v.Name, v.Value))
	}
	log.Logf(0, "%v", strings.Join(parts, ", "))
}

// saveLog stores the recent log output next to a failing input.
func saveLog(cfg *fuzzer.Config, artifact string) {
	if cfg.Workdir == "" {
		return
	}
	if err := osutil.WriteFile(artifact+".log", []byte(log.CachedLogOutput())); err != nil {
		log.Logf(0, "failed to save log: %v", err)
	}
}
