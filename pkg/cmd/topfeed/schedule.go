// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package main

import (
	"log"
	"os"
	"os/exec"

	"github.com/cockroachdb/errors"
	cron "github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// scheduleConfig is the orchestrator's YAML config. Each job is a shell
// pipeline composing the stage subcommands (with the external sort in
// between, like any other map-reduce deployment).
type scheduleConfig struct {
	Jobs []jobConfig `yaml:"jobs"`
}

type jobConfig struct {
	Name string `yaml:"name"`
	// Schedule is a cron expression (or @hourly and friends).
	Schedule string `yaml:"schedule"`
	// Command is run via sh -c.
	Command string `yaml:"command"`
}

func loadScheduleConfig(path string) (scheduleConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return scheduleConfig{}, errors.Wrapf(err, "reading config %s", path)
	}
	var cfg scheduleConfig
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return scheduleConfig{}, errors.Wrapf(err, "parsing config %s", path)
	}
	for _, job := range cfg.Jobs {
		if job.Name == "" || job.Schedule == "" || job.Command == "" {
			return scheduleConfig{}, errors.Newf("job %+v needs name, schedule and command", job)
		}
	}
	return cfg, nil
}

// makeScheduleCommand runs the batch jobs on their cron schedules. A tick
// that fires while the previous run of the same job is still going is
// skipped, not queued: that is what makes each time-windowed listing have a
// single writer per window, which is why the merge stage can skip locking
// for them.
func makeScheduleCommand() *cobra.Command {
	var configPath string
	command := &cobra.Command{
		Use:   "schedule",
		Short: "Run the configured batch jobs on their cron schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadScheduleConfig(configPath)
			if err != nil {
				return err
			}

			c := cron.New(cron.WithChain(
				cron.SkipIfStillRunning(cron.DiscardLogger),
			))
			for _, job := range cfg.Jobs {
				job := job
				_, err := c.AddFunc(job.Schedule, func() {
					log.Printf("job %s: starting", job.Name)
					sh := exec.CommandContext(cmd.Context(), "sh", "-c", job.Command)
					sh.Stdout = os.Stdout
					sh.Stderr = os.Stderr
					if err := sh.Run(); err != nil {
						log.Printf("job %s: FAILED: %v", job.Name, err)
						return
					}
					log.Printf("job %s: done", job.Name)
				})
				if err != nil {
					return errors.Wrapf(err, "job %s: bad schedule %q", job.Name, job.Schedule)
				}
			}

			c.Start()
			defer c.Stop()
			<-cmd.Context().Done()
			log.Printf("shutting down")
			return nil
		},
	}
	command.Flags().StringVar(&configPath, "config", "", "YAML job configuration")
	_ = command.MarkFlagRequired("config")
	return command
}
