package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"maxiwhisper/audio"
	"maxiwhisper/config"
	"maxiwhisper/doctor"
	"maxiwhisper/input"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("initializing audio: %w", err)
			}
			defer ctx.Close()
			return audio.ListDevices(cmd.OutOrStdout(), ctx)
		},
	}
}

func newDoctorCmd() *cobra.Command {
	var cfgFlag string
	var opts doctor.Options
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, devices and permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}
			path, err := configPath(cfgFlag)
			if err != nil {
				return err
			}
			opts.ConfigPath = path
			if !doctor.Run(cmd.Context(), cmd.OutOrStdout(), doctor.Checks(opts)) {
				return errors.New("some checks failed")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfgFlag, "config", "", "config file")
	f.BoolVar(&opts.Interactive, "interactive", false, "also wait for the push-to-talk key")
	f.BoolVar(&opts.Online, "online", false, "also connect to the streaming service")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var cfgFlag string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.PersistentFlags().StringVar(&cfgFlag, "config", "", "config file")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cfgFlag)
			if err != nil {
				return err
			}
			if err := config.Init(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cfgFlag)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValid(cfgFlag)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(initCmd, pathCmd, showCmd)
	return cmd
}

func newBindingsCmd() *cobra.Command {
	var cfgFlag string
	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "Show the configured keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValid(cfgFlag)
			if err != nil {
				return err
			}
			b, err := cfg.Bindings()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), input.Bindings(b).Summary())
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgFlag, "config", "", "config file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "maxiwhisper %s\n", version)
		},
	}
}

func loadValid(cfgFlag string) (*config.Config, error) {
	path, err := configPath(cfgFlag)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
