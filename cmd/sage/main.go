package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sagenet/sage-hub/internal/entity"
	"github.com/sagenet/sage-hub/internal/identity"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/pkg/client"
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var hubURL string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Knowledge hub operator CLI",
	Long: `sage is the command-line interface for a knowledge hub.

It generates Ed25519 keypairs, signs and submits entity create requests,
and queries fragments and trust paths on a running hub.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hubURL, "hub", "http://localhost:8080", "hub base URL")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(fragmentCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(versionCmd)

	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentGetCmd)
	fragmentCmd.AddCommand(fragmentCreateCmd)
	trustCmd.AddCommand(trustPathCmd)
}

func cliContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

// ── keygen ───────────────────────────────────────────────────────────────

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 keypair",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := identity.GenerateKeyPair()
		if err != nil {
			return err
		}
		if keygenOut != "" {
			if err := kp.Save(keygenOut); err != nil {
				return err
			}
			fmt.Printf("private key written to %s\n", keygenOut)
		} else {
			fmt.Printf("private_key: %s\n", kp.PrivateKeyBase64())
		}
		fmt.Printf("public_key:  %s\n", kp.PublicKeyBase64())
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "write the private key seed to this file")
}

func loadKeyPair(path string) (*identity.KeyPair, error) {
	if path == "" {
		return nil, fmt.Errorf("--key is required")
	}
	return identity.LoadKeyPair(path)
}

// ── sign ─────────────────────────────────────────────────────────────────

var signKeyPath string

var signCmd = &cobra.Command{
	Use:   "sign <payload.json>",
	Short: "Sign a JSON payload over its canonical form",
	Long: `sign reads a JSON payload from a file (or stdin when the argument
is "-"), canonicalizes it, and prints the base64 Ed25519 signature.

The payload must be the exact signable field set of the entity being
created, e.g. for a tag: category, content, creator, name, uuid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := loadKeyPair(signKeyPath)
		if err != nil {
			return err
		}

		var raw []byte
		if args[0] == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}

		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}

		signature, err := identity.SignCanonical(kp, payload)
		if err != nil {
			return err
		}
		fmt.Println(signature)
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signKeyPath, "key", "", "path to the Ed25519 private key seed")
}

// ── agent ────────────────────────────────────────────────────────────────

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents",
}

var (
	agentKeyPath     string
	agentUUID        string
	agentDescription string
	agentPrimaryHub  string
)

var agentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a self-signed agent on the hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := loadKeyPair(agentKeyPath)
		if err != nil {
			return err
		}
		if agentUUID == "" {
			agentUUID = uuid.NewString()
		}

		req := &model.CreateAgentRequest{
			UUID:        agentUUID,
			PublicKey:   kp.PublicKeyBase64(),
			Description: agentDescription,
			PrimaryHub:  agentPrimaryHub,
		}
		signature, err := identity.SignCanonical(kp, entity.AgentSignablePayload(req))
		if err != nil {
			return err
		}
		req.Signature = signature

		ctx, cancel := cliContext()
		defer cancel()

		var created json.RawMessage
		if err := client.New(hubURL).CreateAgent(ctx, req, &created); err != nil {
			return err
		}
		printJSON(created)
		return nil
	},
}

var agentGetCmd = &cobra.Command{
	Use:   "get <uuid>",
	Short: "Fetch an agent by UUID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		var agent json.RawMessage
		if err := client.New(hubURL).GetAgent(ctx, args[0], &agent); err != nil {
			return err
		}
		printJSON(agent)
		return nil
	},
}

func init() {
	agentCreateCmd.Flags().StringVar(&agentKeyPath, "key", "", "path to the Ed25519 private key seed")
	agentCreateCmd.Flags().StringVar(&agentUUID, "uuid", "", "agent UUID (generated when omitted)")
	agentCreateCmd.Flags().StringVar(&agentDescription, "description", "", "agent description")
	agentCreateCmd.Flags().StringVar(&agentPrimaryHub, "primary-hub", "", "agent's primary hub")
}

// ── fragment ─────────────────────────────────────────────────────────────

var fragmentCmd = &cobra.Command{
	Use:   "fragment",
	Short: "Manage fragments",
}

var (
	fragmentKeyPath string
	fragmentCreator string
	fragmentContent string
	fragmentServer  string
)

var fragmentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a signed fragment on the hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := loadKeyPair(fragmentKeyPath)
		if err != nil {
			return err
		}
		if fragmentCreator == "" {
			return fmt.Errorf("--creator is required")
		}
		if fragmentContent == "" {
			return fmt.Errorf("--content is required")
		}

		now := time.Now().UTC()
		req := &model.CreateFragmentRequest{
			UUID:    uuid.NewString(),
			Content: fragmentContent,
			Creator: model.AgentAddress(fragmentServer, fragmentCreator),
			When:    &now,
		}
		signature, err := identity.SignCanonical(kp, entity.FragmentSignablePayload(req))
		if err != nil {
			return err
		}
		req.Signature = signature

		ctx, cancel := cliContext()
		defer cancel()

		var created json.RawMessage
		if err := client.New(hubURL).CreateFragment(ctx, req, &created); err != nil {
			return err
		}
		printJSON(created)
		return nil
	},
}

func init() {
	fragmentCreateCmd.Flags().StringVar(&fragmentKeyPath, "key", "", "path to the creator's Ed25519 private key seed")
	fragmentCreateCmd.Flags().StringVar(&fragmentCreator, "creator", "", "creator agent UUID")
	fragmentCreateCmd.Flags().StringVar(&fragmentContent, "content", "", "fragment content")
	fragmentCreateCmd.Flags().StringVar(&fragmentServer, "server", "localhost:8080", "server:port of the creator's hub")
}

// ── search ───────────────────────────────────────────────────────────────

var (
	searchLimit    int
	searchFederate bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search fragments, optionally across the federation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		c := client.New(hubURL)
		var result json.RawMessage
		var err error
		if searchFederate {
			err = c.FederatedSearch(ctx, args[0], searchLimit, 0, &result)
		} else {
			err = c.SearchFragments(ctx, args[0], searchLimit, &result)
		}
		if err != nil {
			return err
		}
		printJSON(result)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")
	searchCmd.Flags().BoolVar(&searchFederate, "federate", false, "fan the query out to peer hubs")
}

// ── trust ────────────────────────────────────────────────────────────────

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Query the trust graph",
}

var trustPathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Find the best trust path between two addresses",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cliContext()
		defer cancel()

		var path json.RawMessage
		if err := client.New(hubURL).TrustPath(ctx, args[0], args[1], &path); err != nil {
			return err
		}
		printJSON(path)
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}
