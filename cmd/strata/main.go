/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Strata is the command-line entry point for the embedded catalog engine.

Usage:

	strata [flags]

Flags:

	-config     Path to configuration file
	-data-dir   Data directory, or :memory: for a throwaway database
	-log-level  Log level: debug, info, warn, error
	-log-json   Enable JSON log output
	-user       User to connect as (default admin)
	-e          Execute one command and exit
	-quiet      Do not print the banner
	-version    Show version information

Configuration precedence, lowest to highest: defaults, config file,
environment variables, flags. SIGHUP reloads the file and environment and
applies the settings that can change at runtime.

On the first start of a new data directory the administrator password is
taken from STRATA_ADMIN_PASSWORD or generated and printed once.
*/
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"strata/internal/auth"
	"strata/internal/banner"
	"strata/internal/config"
	"strata/internal/engine"
	"strata/internal/logging"
	"strata/internal/shell"
)

// envPassword supplies the login password for non-interactive use.
const envPassword = "STRATA_PASSWORD"

func main() {
	os.Exit(run())
}

func run() int {
	cfgMgr := config.NewManager()
	if err := cfgMgr.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	cfg := cfgMgr.Get()

	configFile := flag.String("config", "", "Path to configuration file")
	dataDir := flag.String("data-dir", cfg.DataDir, "Data directory, or :memory:")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", cfg.LogJSON, "Enable JSON log output")
	user := flag.String("user", auth.AdminUsername, "User to connect as")
	execute := flag.String("e", "", "Execute one command and exit")
	quiet := flag.Bool("quiet", false, "Do not print the banner")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("strata version %s\n", banner.Version)
		return 0
	}

	if *configFile != "" {
		if err := cfgMgr.LoadFromFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			return 1
		}
		cfgMgr.LoadFromEnv()
		cfg = cfgMgr.Get()
	}

	// Only flags the user set override file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-dir":
			cfg.DataDir = *dataDir
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-json":
			cfg.LogJSON = *logJSON
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	cfgMgr.Set(cfg)

	interactive := *execute == "" && isTerminal()
	if interactive && !*quiet {
		banner.PrintWithConfig(cfg)
	}

	db, err := engine.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	log := logging.NewLogger("main")
	cfgMgr.OnReload(db.Apply)
	watchReload(cfgMgr, log)

	password, err := loginPassword(db, *user, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	sess, err := db.Connect(*user, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	sh := shell.New(db, sess, os.Stdout)
	switch {
	case *execute != "":
		if err := sh.Execute(ctx, *execute); err != nil && !errors.Is(err, shell.ErrQuit) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	case interactive:
		return runInteractive(ctx, sh)
	default:
		return runPiped(ctx, sh, os.Stdin)
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// watchReload reloads the configuration on SIGHUP.
func watchReload(cfgMgr *config.Manager, log *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := cfgMgr.Reload(); err != nil {
				log.Error("Configuration reload failed", "error", err)
				continue
			}
			log.Info("Configuration reloaded")
		}
	}()
}

// loginPassword returns the password for user. A freshly generated admin
// password is printed once and used directly.
func loginPassword(db *engine.Database, user string, interactive bool) (string, error) {
	if pw := db.InitialAdminPassword(); pw != "" && user == auth.AdminUsername {
		fmt.Fprintf(os.Stderr, "Generated admin password: %s\n", pw)
		fmt.Fprintln(os.Stderr, "Store it now; it will not be shown again.")
		return pw, nil
	}
	if pw, ok := os.LookupEnv(envPassword); ok {
		return pw, nil
	}
	if pw := db.Config().AdminPassword; pw != "" && user == auth.AdminUsername {
		return pw, nil
	}
	if !interactive {
		return "", fmt.Errorf("no password for %s: set %s", user, envPassword)
	}
	return readPassword(fmt.Sprintf("Password for %s: ", user))
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".strata_history")
}

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(shell.Completions))
	for _, cmd := range shell.Completions {
		items = append(items, readline.PcItem(cmd))
	}
	return readline.NewPrefixCompleter(items...)
}

func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

func runInteractive(ctx context.Context, sh *shell.Shell) int {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:              "strata> ",
		HistoryFile:         historyFile(),
		AutoComplete:        completer(),
		InterruptPrompt:     "^C",
		EOFPrompt:           `\q`,
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer rl.Close()

	fmt.Println(`Type \h for help, \q to quit.`)
	var buf strings.Builder
	for {
		if buf.Len() > 0 {
			rl.SetPrompt("   ...> ")
		} else {
			rl.SetPrompt(sh.Session().Schema() + "> ")
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if buf.Len() > 0 {
				buf.Reset()
				continue
			}
			fmt.Println(`(Use \q to quit or Ctrl+D to exit)`)
			continue
		}
		if err != nil {
			return 0
		}

		input := strings.TrimSpace(line)
		// A trailing backslash continues the command on the next line.
		if strings.HasSuffix(input, `\`) && !strings.HasPrefix(input, `\`) {
			buf.WriteString(strings.TrimSuffix(input, `\`))
			buf.WriteString(" ")
			continue
		}
		buf.WriteString(input)
		cmd := buf.String()
		buf.Reset()

		if err := sh.Execute(ctx, cmd); err != nil {
			if errors.Is(err, shell.ErrQuit) {
				return 0
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

// runPiped executes one command per input line and stops at the first
// error.
func runPiped(ctx context.Context, sh *shell.Shell, in io.Reader) int {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return 1
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if err := sh.Execute(ctx, line); err != nil {
			if errors.Is(err, shell.ErrQuit) {
				return 0
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
