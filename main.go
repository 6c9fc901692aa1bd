package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabnav/internal/analyzer"
	"github.com/lotas/tabnav/internal/applog"
	"github.com/lotas/tabnav/internal/cdp"
	"github.com/lotas/tabnav/internal/config"
	"github.com/lotas/tabnav/internal/export"
	"github.com/lotas/tabnav/internal/firefox"
	"github.com/lotas/tabnav/internal/journal"
	"github.com/lotas/tabnav/internal/popup"
	"github.com/lotas/tabnav/internal/server"
	"github.com/lotas/tabnav/internal/tui"
	"github.com/lotas/tabnav/internal/types"
	"github.com/mattn/go-runewidth"
)

const (
	connectTimeout = 15 * time.Second
	hostTimeout    = 10 * time.Second
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "list":
			runList(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "switch":
			runSwitch(os.Args[2:])
			return
		case "close":
			runClose(os.Args[2:])
			return
		case "history":
			runHistory(os.Args[2:])
			return
		case "profiles":
			runProfiles()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}
	runTUI(os.Args[1:])
}

func printHelp() {
	fmt.Print(`tabnav — browse the tabs of the current window grouped by site

Usage:
  tabnav                                  Start the TUI (default)
    --source <name>        Tab source: bridge, cdp or firefox (default: bridge)
    --port <n>             WebSocket port for the extension bridge (default: 19191)
    --cdp-url <url>        Chrome DevTools endpoint (default: http://127.0.0.1:9222)
    --profile <name>       Firefox profile name (firefox source)
    --stale-days <n>       Days before a tab is marked stale (default: 7)

  tabnav list [source flags]              Print the sites and their tabs
  tabnav export [source flags]            Export tabs to stdout or file
    --json                 Export as JSON instead of markdown
    --pretty               Render the markdown for the terminal
    --out <file>           Output file path (default: stdout)
  tabnav switch <tab-id> [source flags]   Focus a tab
  tabnav close <tab-id> [source flags]    Close a tab
    --yes                  Skip confirmation prompt
  tabnav history [--limit n]              Show recently closed tabs
  tabnav profiles                         List Firefox profiles

Configuration:
  ~/.config/tabnav/config.yaml (or TABNAV_CONFIG), then .env and the
  environment, then flags.

Environment:
  TABNAV_SOURCE, TABNAV_PORT, TABNAV_CDP_URL, TABNAV_PROFILE, TABNAV_STALE_DAYS
  TABNAV_DB              Closed-tab journal (default: ~/.local/share/tabnav/journal.db)
  TABNAV_LOG_DIR         Log directory (default: ~/.local/share/tabnav)
  TABNAV_NO_JOURNAL      Disable the closed-tab journal
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// setup loads the configuration, applies the command-line flags on top of it
// and starts logging.
func setup(fs *flag.FlagSet, args []string, sourceFlags bool) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if sourceFlags {
		bindSourceFlags(fs, cfg)
		fs.IntVar(&cfg.StaleDays, "stale-days", cfg.StaleDays, "Days before a tab is marked stale (0 disables)")
	}
	fs.Parse(reorderArgs(fs, args))
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	return cfg
}

func bindSourceFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar((*string)(&cfg.Source), "source", string(cfg.Source), "Tab source: bridge, cdp or firefox")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "WebSocket port for the extension bridge")
	fs.StringVar(&cfg.CDPURL, "cdp-url", cfg.CDPURL, "Chrome DevTools endpoint")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "Firefox profile name")
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
// Boolean flags never consume the next argument.
func reorderArgs(fs *flag.FlagSet, args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			takesValue := !strings.Contains(arg, "=") && !isBoolFlag(fs, arg)
			if takesValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(fs *flag.FlagSet, arg string) bool {
	f := fs.Lookup(strings.TrimLeft(arg, "-"))
	if f == nil {
		return false
	}
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// hostConn is the tab host chosen by the configuration.
type hostConn struct {
	host  popup.Host
	srv   *server.Server // bridge only
	label string
	stop  func()
}

func openHost(cfg *config.Config) (*hostConn, error) {
	switch cfg.Source {
	case types.SourceBridge:
		srv := server.New(cfg.Port)
		ln, err := srv.Listen()
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			if err := srv.Serve(ctx, ln); err != nil {
				applog.Error("server.serve", err)
			}
		}()
		return &hostConn{host: srv, srv: srv, label: fmt.Sprintf(":%d", cfg.Port), stop: cancel}, nil

	case types.SourceCDP:
		return &hostConn{host: cdp.New(cfg.CDPURL), label: cfg.CDPURL, stop: func() {}}, nil

	case types.SourceFirefox:
		profiles, err := firefox.DiscoverProfiles()
		if err != nil {
			return nil, fmt.Errorf("discover profiles: %w", err)
		}
		profile, err := firefox.SelectProfile(profiles, cfg.Profile)
		if err != nil {
			return nil, err
		}
		return &hostConn{host: firefox.NewSessionHost(profile.Path), label: profile.Name, stop: func() {}}, nil
	}
	return nil, fmt.Errorf("%w %q", config.ErrInvalidSource, cfg.Source)
}

// ready waits for the browser extension when the bridge is the source.
func (h *hostConn) ready(ctx context.Context) error {
	if h.srv == nil {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Waiting for browser extension on port %d...\n", h.srv.Port())
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return h.srv.WaitConnected(ctx)
}

// openJournal returns the closed-tab journal, or nil when it is disabled or
// cannot be opened.
func openJournal(cfg *config.Config) (popup.Journal, func()) {
	if cfg.NoJournal {
		return nil, func() {}
	}
	db, err := journal.OpenDB(cfg.DBPath)
	if err != nil {
		applog.Error("journal.open", err, "path", cfg.DBPath)
		fmt.Fprintf(os.Stderr, "Warning: closed-tab journal disabled: %v\n", err)
		return nil, func() {}
	}
	return journal.New(db, string(cfg.Source)), func() { db.Close() }
}

// openPopup connects to the host and loads the current window, the way a
// popup open does.
func openPopup(cfg *config.Config, j popup.Journal) (*popup.Controller, func()) {
	h, err := openHost(cfg)
	if err != nil {
		fatal(err)
	}
	if err := h.ready(context.Background()); err != nil {
		h.stop()
		fatal(err)
	}
	ctrl := popup.NewController(h.host, j)
	ctx, cancel := context.WithTimeout(context.Background(), hostTimeout)
	defer cancel()
	if err := ctrl.Open(ctx); err != nil {
		h.stop()
		fatal(err)
	}
	return ctrl, h.stop
}

func runTUI(args []string) {
	fs := flag.NewFlagSet("tabnav", flag.ExitOnError)
	cfg := setup(fs, args, true)
	defer applog.Close()

	h, err := openHost(cfg)
	if err != nil {
		fatal(err)
	}
	defer h.stop()

	j, closeJournal := openJournal(cfg)
	defer closeJournal()

	ctrl := popup.NewController(h.host, j)
	model := tui.NewModel(ctrl, tui.Options{
		Source:    cfg.Source,
		Label:     h.label,
		Server:    h.srv,
		Timeout:   hostTimeout,
		StaleDays: cfg.StaleDays,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	cfg := setup(fs, args, true)
	defer applog.Close()

	ctrl, stop := openPopup(cfg, nil)
	defer stop()
	s := ctrl.Session()
	printGroups(os.Stdout, s, analyzer.Analyze(s.AllTabs(), cfg.StaleDays, time.Now()))
}

// printGroups lists every site in navigation order with its tabs. The
// current tab is marked with '*'; duplicate and stale hints follow the URL.
func printGroups(w io.Writer, s *popup.Session, hints analyzer.Hints) {
	nav := s.Navigation()
	if len(nav) == 0 {
		fmt.Fprintln(w, "No tabs in this window.")
		return
	}
	expanded := s.Expanded()
	defer func() {
		if expanded != "" {
			s.Expand(expanded)
		}
	}()

	for i, e := range nav {
		if i > 0 {
			fmt.Fprintln(w)
		}
		marker := ""
		if e.Highlighted {
			marker = " *"
		}
		fmt.Fprintf(w, "%s (%d)%s\n", e.Key, e.Count, marker)
		if err := s.Expand(e.Key); err != nil {
			continue
		}
		for _, r := range s.Rows() {
			mark := " "
			if !r.Switchable {
				mark = "*"
			}
			title := r.Tab.Title
			if title == "" {
				title = r.Tab.URL
			}
			title = runewidth.FillRight(runewidth.Truncate(title, 48, "…"), 48)
			fmt.Fprintf(w, "  %s %5d  %s  %s%s\n", mark, r.Tab.ID, title, r.Tab.URL, hintSuffix(hints, r.Tab.ID))
		}
	}
}

func hintSuffix(h analyzer.Hints, id int) string {
	var parts []string
	if h.Duplicate[id] {
		parts = append(parts, "dup")
	}
	if days, ok := h.StaleDays[id]; ok {
		parts = append(parts, fmt.Sprintf("stale %dd", days))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, ", ") + "]"
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "Export as JSON instead of markdown")
	pretty := fs.Bool("pretty", false, "Render the markdown for the terminal")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	cfg := setup(fs, args, true)
	defer applog.Close()

	ctrl, stop := openPopup(cfg, nil)
	defer stop()
	data := export.FromSession(ctrl.Session(), cfg.Source, time.Now())

	var output string
	var err error
	switch {
	case *jsonFlag:
		output, err = export.JSON(data)
	case *pretty:
		output, err = export.Pretty(data, "dark", 100)
	default:
		output = export.Markdown(data)
	}
	if err != nil {
		fatal(fmt.Errorf("generate export: %w", err))
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(output), 0644); err != nil {
			fatal(fmt.Errorf("write file: %w", err))
		}
		return
	}
	fmt.Print(output)
}

func tabIDArg(fs *flag.FlagSet, usage string) int {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "Invalid tab id: %s\n", fs.Arg(0))
		os.Exit(1)
	}
	return id
}

func runSwitch(args []string) {
	fs := flag.NewFlagSet("switch", flag.ExitOnError)
	cfg := setup(fs, args, true)
	defer applog.Close()
	id := tabIDArg(fs, "Usage: tabnav switch <tab-id> [--source name]")

	ctrl, stop := openPopup(cfg, nil)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), hostTimeout)
	defer cancel()
	if err := ctrl.Switch(ctx, id); err != nil {
		fatal(err)
	}
	tab, _ := ctrl.Session().Tab(id)
	fmt.Printf("Switched to tab %d: %s\n", id, tab.Title)
}

func runClose(args []string) {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Skip confirmation prompt")
	cfg := setup(fs, args, true)
	defer applog.Close()
	id := tabIDArg(fs, "Usage: tabnav close <tab-id> [--source name] [--yes]")

	j, closeJournal := openJournal(cfg)
	defer closeJournal()
	ctrl, stop := openPopup(cfg, j)
	defer stop()

	var confirm func(string) bool
	if !*yes {
		confirm = askConfirm(os.Stdin, os.Stdout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), hostTimeout)
	defer cancel()
	closed, err := ctrl.Delete(ctx, id, confirm)
	if err != nil {
		fatal(err)
	}
	if !closed {
		fmt.Println("Aborted.")
		return
	}
	fmt.Printf("Tab %d closed.\n", id)
}

// askConfirm prompts on out and accepts "y" or "yes" from in.
func askConfirm(in io.Reader, out io.Writer) func(string) bool {
	reader := bufio.NewReader(in)
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N] ", prompt)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		return answer == "y" || answer == "yes"
	}
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of entries to show (0 for all)")
	cfg := setup(fs, args, false)
	defer applog.Close()

	db, err := journal.OpenDB(cfg.DBPath)
	if err != nil {
		fatal(fmt.Errorf("open journal: %w", err))
	}
	defer db.Close()

	entries, err := journal.List(context.Background(), db, *limit)
	if err != nil {
		fatal(err)
	}
	printHistory(os.Stdout, entries)
}

func printHistory(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No closed tabs recorded.")
		return
	}
	fmt.Fprintf(w, "%-16s  %-8s %-16s %s\n", "CLOSED", "SOURCE", "SITE", "TAB")
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = e.URL
		}
		fmt.Fprintf(w, "%-16s  %-8s %-16s %s\n",
			e.ClosedAt.Local().Format("2006-01-02 15:04"),
			e.Source,
			runewidth.Truncate(e.Group, 16, "…"),
			runewidth.Truncate(title, 60, "…"),
		)
		fmt.Fprintf(w, "%-16s  %s\n", "", e.URL)
	}
}

func runProfiles() {
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		fatal(fmt.Errorf("discover Firefox profiles: %w", err))
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found.")
		os.Exit(1)
	}

	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}
