// lspproxy: an LSP proxy that sits between an editor client (speaking to
// this process over stdin/stdout) and a language-server backend
// (canonically clangd, spawned as a child process), rebranding the
// server's identity in initialize responses and otherwise forwarding
// traffic transparently.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/codefuse/lspproxy/internal/cli"
	"github.com/codefuse/lspproxy/internal/proxy/backend"
	"github.com/codefuse/lspproxy/internal/proxy/config"
	"github.com/codefuse/lspproxy/internal/proxy/diag"
	"github.com/codefuse/lspproxy/internal/proxy/handler"
	"github.com/codefuse/lspproxy/internal/proxy/supervisor"
)

func main() {
	var (
		showVersion   = flag.Bool("version", false, "Show version information")
		showHelp      = flag.Bool("help", false, "Show help message")
		jsonOutput    = flag.Bool("json", false, "Output version in JSON format")
		backendCmd    = flag.String("backend", "clangd", "Backend language-server command to spawn")
		backendArgs   = flag.String("backend-args", "", "Space-separated arguments passed to the backend command")
		allowlist     = flag.String("backend-allow", "clangd,gopls,rust-analyzer", "Comma-separated allowed backend command basenames (empty disables the allowlist)")
		concurrency   = flag.Int64("concurrency", 15, "Shared permit-pool size bounding concurrent handler tasks")
		minBackendVer = flag.String("min-backend-version", "", "Minimum backend version constraint (e.g. \">=18.0.0\"); empty disables the check")
		rulesFile     = flag.String("rules", "", "Path to a hot-reloadable rewrite-rules JSON file; empty disables config watching")
		diagAddr      = flag.String("diag-addr", "", "Address for the optional HTTP/3 diagnostics listener (e.g. 127.0.0.1:0); empty disables it")
		serverName    = flag.String("rebrand-name", "codefuse", "serverInfo.name the proxy substitutes into initialize responses")
		serverVersion = flag.String("rebrand-version", "0.1.0", "serverInfo.version the proxy substitutes into initialize responses")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "An LSP proxy between an editor client (stdio) and a language-server backend.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		cli.PrintVersion("lspproxy", *jsonOutput)
		os.Exit(0)
	}

	if err := run(runConfig{
		backendCmd:    *backendCmd,
		backendArgs:   *backendArgs,
		allowlist:     *allowlist,
		concurrency:   *concurrency,
		minBackendVer: *minBackendVer,
		rulesFile:     *rulesFile,
		diagAddr:      *diagAddr,
		serverName:    *serverName,
		serverVersion: *serverVersion,
	}); err != nil {
		cli.ExitWithError("%v", err)
	}
}

type runConfig struct {
	backendCmd    string
	backendArgs   string
	allowlist     string
	concurrency   int64
	minBackendVer string
	rulesFile     string
	diagAddr      string
	serverName    string
	serverVersion string
}

func run(rc runConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var allowed []string
	if rc.allowlist != "" {
		allowed = strings.Split(rc.allowlist, ",")
	}
	launcher := backend.NewLauncher(allowed...)

	var args []string
	if rc.backendArgs != "" {
		args = strings.Fields(rc.backendArgs)
	}

	cmd, backendIn, backendOut, backendErr, err := launcher.Spawn(ctx, rc.backendCmd, args...)
	if err != nil {
		return fmt.Errorf("spawning backend: %w", err)
	}
	defer backendIn.Close()

	versionCheck, err := backend.NewVersionCheck(rc.minBackendVer)
	if err != nil {
		return fmt.Errorf("parsing -min-backend-version: %w", err)
	}

	var rules *config.Watcher
	if rc.rulesFile != "" {
		rules, err = config.NewWatcher(rc.rulesFile)
		if err != nil {
			return fmt.Errorf("starting config watcher: %w", err)
		}
		defer rules.Close()
	}

	var diagServer *diag.Server
	sessionReady := make(chan *supervisor.Session, 1)

	supCfg := supervisor.Config{
		FrontendIn:   os.Stdin,
		FrontendOut:  os.Stdout,
		BackendIn:    backendIn,
		BackendOut:   backendOut,
		BackendErr:   backendErr,
		Registry:     handler.NewRegistry(),
		ServerInfo:   handler.ServerInfo{Name: rc.serverName, Version: rc.serverVersion},
		Concurrency:  rc.concurrency,
		VersionCheck: versionCheck,
	}
	// Assigned only when non-nil: a nil *config.Watcher stored in the
	// dispatch.RuleSource interface would be a non-nil interface wrapping
	// a nil pointer, and every Denied call would panic.
	if rules != nil {
		supCfg.Rules = rules
	}

	if rc.diagAddr != "" {
		go func() {
			session := <-sessionReady
			s, err := diag.NewServer(rc.diagAddr, session)
			if err != nil {
				log.Printf("[diag] could not build listener: %v", err)
				return
			}
			diagServer = s
			addr, err := s.Start()
			if err != nil {
				log.Printf("[diag] could not start listener: %v", err)
				return
			}
			log.Printf("[diag] listening on %s", addr)
		}()
	}

	runErr := supervisor.Run(ctx, supCfg, func(s *supervisor.Session) {
		select {
		case sessionReady <- s:
		default:
		}
	})

	if diagServer != nil {
		_ = diagServer.Stop()
	}
	_ = cmd.Wait()

	return runErr
}
