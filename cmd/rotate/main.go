// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// rotate is the SATL authority tool for rotation packs: key generation,
// pack creation and signing, inspection, verification and one-shot
// application against a configured node state directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/config"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/core/log"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/rotation"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/shaping"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/signer"
)

var (
	testSignatures bool

	logBackend *log.Backend
)

func provider() signer.Provider {
	if testSignatures {
		return signer.NewTestProvider(logBackend.GetLogger("rotate"))
	}
	return signer.NewDilithiumProvider()
}

func fatalf(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// parseParam parses a key=value flag, inferring the value type the same
// way the registry expects it: bool, integer, float, then string.
func parseParam(s string) (string, interface{}, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid parameter '%v', expected key=value", s)
	}
	if !shaping.IsRecognized(name) {
		return "", nil, fmt.Errorf("unrecognized parameter '%v'", name)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return name, b, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return name, n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return name, f, nil
	}
	return name, raw, nil
}

// writeKeyFile writes key material to a new file.  The exclusive create
// refuses to clobber existing key material without a window between the
// existence check and the write.
func writeKeyFile(f string, b []byte) error {
	w, err := os.OpenFile(f, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err = w.Write(b); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func genkeyCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate an authority rotation keypair",
		Run: func(cmd *cobra.Command, args []string) {
			p := provider()
			pub, priv, err := p.GenerateKeypair()
			if err != nil {
				fatalf("Failed to generate keypair: %v", err)
			}

			pubFile := filepath.Join(outDir, "rotation.public")
			privFile := filepath.Join(outDir, "rotation.private")
			if err := writeKeyFile(pubFile, pub); err != nil {
				fatalf("Failed to write public key: %v", err)
			}
			if err := writeKeyFile(privFile, priv); err != nil {
				fatalf("Failed to write private key: %v", err)
			}
			fmt.Printf("Wrote %v keypair to %v and %v\n", p.Name(), pubFile, privFile)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}

func newCommand() *cobra.Command {
	var (
		channel  string
		validity time.Duration
		params   []string
		keyFile  string
		outFile  string
	)

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create and sign a rotation pack",
		Run: func(cmd *cobra.Command, args []string) {
			priv, err := os.ReadFile(keyFile)
			if err != nil {
				fatalf("Failed to read private key: %v", err)
			}

			delta := make(map[string]interface{})
			for _, s := range params {
				name, value, err := parseParam(s)
				if err != nil {
					fatalf("%v", err)
				}
				delta[name] = value
			}
			if len(delta) == 0 {
				fatalf("At least one --param is required")
			}

			p := provider()
			pack, err := rotation.New(p, priv, channel, delta, validity)
			if err != nil {
				fatalf("Failed to create pack: %v", err)
			}
			b, err := pack.Bytes()
			if err != nil {
				fatalf("Failed to serialize pack: %v", err)
			}
			if err := os.WriteFile(outFile, b, 0600); err != nil {
				fatalf("Failed to write pack: %v", err)
			}
			fmt.Printf("Wrote pack %v (channel %v, %d parameters, valid %v) to %v\n",
				pack.RotationID, pack.ChannelID, len(pack.Parameters), validity, outFile)
		},
	}
	cmd.Flags().StringVarP(&channel, "channel", "c", "default", "channel identifier")
	cmd.Flags().DurationVar(&validity, "validity", 5*time.Minute, "validity window")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter update key=value (repeatable)")
	cmd.Flags().StringVarP(&keyFile, "key", "k", "rotation.private", "authority private key file")
	cmd.Flags().StringVarP(&outFile, "out", "o", "rotation.pack", "output pack file")
	return cmd
}

func inspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect PACK",
		Short: "Print the fields of a serialized rotation pack",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			b, err := os.ReadFile(args[0])
			if err != nil {
				fatalf("Failed to read pack: %v", err)
			}
			p, err := rotation.FromBytes(b)
			if err != nil {
				fatalf("Failed to parse pack: %v", err)
			}

			fmt.Printf("Version:     %v\n", p.Version)
			fmt.Printf("Rotation ID: %v\n", p.RotationID)
			fmt.Printf("Channel ID:  %v\n", p.ChannelID)
			fmt.Printf("Issued at:   %v\n", time.Unix(int64(p.IssuedAt), 0).UTC())
			if p.ValidUntil != 0 {
				fmt.Printf("Valid until: %v\n", time.Unix(int64(p.ValidUntil), 0).UTC())
			} else {
				fmt.Printf("Valid until: (absent, legacy format)\n")
			}
			fmt.Printf("Parameters:\n")
			for k, v := range p.Parameters {
				fmt.Printf("  %v = %v\n", k, v)
			}
			fmt.Printf("Signature:   %d bytes\n", len(p.Signature))
		},
	}
	return cmd
}

func verifyCommand() *cobra.Command {
	var keyFile string

	cmd := &cobra.Command{
		Use:   "verify PACK",
		Short: "Verify a rotation pack signature",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			b, err := os.ReadFile(args[0])
			if err != nil {
				fatalf("Failed to read pack: %v", err)
			}
			p, err := rotation.FromBytes(b)
			if err != nil {
				fatalf("Failed to parse pack: %v", err)
			}
			pub, err := os.ReadFile(keyFile)
			if err != nil {
				fatalf("Failed to read public key: %v", err)
			}
			if !p.Verify(provider(), pub) {
				fatalf("Signature is INVALID")
			}
			fmt.Println("Signature is valid")
		},
	}
	cmd.Flags().StringVarP(&keyFile, "key", "k", "rotation.public", "authority public key file")
	return cmd
}

func applyCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "apply PACK",
		Short: "Apply a rotation pack against a configured node state directory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadFile(cfgFile)
			if err != nil {
				fatalf("Failed to load config: %v", err)
			}
			backend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
			if err != nil {
				fatalf("Failed to initialize logging: %v", err)
			}

			m, err := rotation.NewManager(cfg, backend)
			if err != nil {
				fatalf("Failed to initialize manager: %v", err)
			}
			defer m.Shutdown()

			b, err := os.ReadFile(args[0])
			if err != nil {
				fatalf("Failed to read pack: %v", err)
			}
			accepted, reason := m.Apply(b)
			if !accepted {
				fatalf("Pack rejected: %v", reason)
			}
			fmt.Println("Pack applied")
		},
	}
	cmd.Flags().StringVarP(&cfgFile, "config", "f", "satl.toml", "node configuration file")
	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "rotate",
		Short: "SATL rotation pack authority tool",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			logBackend, err = log.New("", "NOTICE", false)
			if err != nil {
				fatalf("Failed to initialize logging: %v", err)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&testSignatures, "test-signatures", false, "use test mode signatures (NOT for production)")

	rootCmd.AddCommand(genkeyCommand())
	rootCmd.AddCommand(newCommand())
	rootCmd.AddCommand(inspectCommand())
	rootCmd.AddCommand(verifyCommand())
	rootCmd.AddCommand(applyCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
