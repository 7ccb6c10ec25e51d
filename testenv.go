package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"straf/audio"
	"straf/beep"
	"straf/config"
	"straf/log"
	"straf/overlay"
	"straf/penalty"
	"straf/pipeline"
	"straf/transcriber"
)

const (
	sayTimeout  = 2 * time.Second
	idleTimeout = 2 * time.Minute
)

// runTestMode runs the real scheduler and matcher over silent audio and the
// scripted transcriber, driven by commands on stdin:
//
//	SAY <text>   inject a phrase and wait until it has been matched
//	SLEEP <ms>
//	STATUS       print severity, active penalty and queue length
//	WAIT_IDLE    wait until nothing is active or queued
//	QUIT
func runTestMode(cfgPath string) int {
	beep.Disable()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := log.Init(log.Options{Level: cfg.Logging.Level, Console: os.Stderr}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	sink := overlay.NewLog()
	var started atomic.Int64
	sched := penalty.New(cfg.Scheduler(), sink, penalty.WithObserver(penalty.ObserverFunc(func(e penalty.Event) {
		if e.Outcome == penalty.OutcomeStarted {
			started.Add(1)
		}
	})))

	matcher := cfg.Matcher()
	fake := transcriber.NewFake()
	handled := make(chan string, 16)
	d := pipeline.New(pipeline.Config{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		Hints:      matcher.Words(),
	}, audio.NewSilentSource(), fake, matcher, sched,
		pipeline.WithSink(sink),
		pipeline.WithPhraseHook(func(p pipeline.Phrase, reasons []string) {
			fmt.Printf("HEARD %q matches=%s\n", p.Text, strings.Join(reasons, ","))
			select {
			case handled <- p.Text:
			default:
			}
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	log.SessionStart("silent", fake.Name(), len(matcher.Words()))
	defer func() { log.SessionEnd(int(started.Load())) }()

	if !waitStarted(fake, errc) {
		return 1
	}
	fmt.Println("READY")

	drive(os.Stdin, fake, sched, handled)
	cancel()
	if err := <-errc; err != nil {
		log.Errorf("pipeline: %v", err)
		return 1
	}
	return 0
}

// waitStarted blocks until the pipeline forwards audio or fails to start.
func waitStarted(fake *transcriber.Fake, errc <-chan error) bool {
	deadline := time.After(5 * time.Second)
	for fake.Fed() == 0 {
		select {
		case err := <-errc:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		case <-deadline:
			fmt.Fprintln(os.Stderr, "Error: pipeline did not start")
			return false
		case <-time.After(5 * time.Millisecond):
		}
	}
	return true
}

func drive(in io.Reader, fake *transcriber.Fake, sched *penalty.Scheduler, handled <-chan string) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "SAY":
			if !fake.Say(arg, 1) {
				log.Warnf("test: SAY %q ignored, transcriber not running", arg)
				continue
			}
			select {
			case <-handled:
			case <-time.After(sayTimeout):
				log.Warnf("test: SAY %q not handled within %s", arg, sayTimeout)
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "STATUS":
			printStatus(os.Stdout, sched.Snapshot())
		case "WAIT_IDLE":
			if !waitIdle(sched, idleTimeout) {
				log.Warnf("test: not idle after %s", idleTimeout)
			}
			fmt.Println("IDLE")
		case "QUIT":
			return
		default:
			log.Warnf("test: unknown command %q", line)
		}
	}
}

func printStatus(w io.Writer, st penalty.State) {
	active := ""
	if st.Active != nil {
		active = st.Active.Label
	}
	fmt.Fprintf(w, "STATUS severity=%d active=%q queue=%d\n", st.Severity, active, len(st.Queue))
}

func waitIdle(sched *penalty.Scheduler, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st := sched.Snapshot()
		if st.Active == nil && len(st.Queue) == 0 {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
