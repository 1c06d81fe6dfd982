package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"rarfetch/config"
	"rarfetch/core"
	"rarfetch/protocols"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: rarfetch [flags] <command> [args]

Commands:
  list [path]                    list a remote directory
  get <remote> [local]           download one file (resumes a partial local copy)
  fetch <remote>                 download an archive and extract it
  extract <archive> <dest>       extract a local archive
  watch <remoteDir> <schedule> [pattern]
                                 poll a remote directory on a cron schedule and
                                 fetch new files matching pattern (default \.rar$)

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default ~/.rarfetch/config.toml)")
	host := flag.String("host", "", "Remote host (overrides config)")
	port := flag.Int("port", 0, "Remote port (overrides config)")
	user := flag.String("user", "", "Username (overrides config)")
	password := flag.String("password", "", "Password (overrides config)")
	useSFTP := flag.Bool("sftp", false, "Connect over SFTP instead of FTP")
	timeout := flag.Int("timeout", 20, "Connect timeout in seconds")
	downloadDir := flag.String("download-dir", "", "Download directory (overrides config)")
	extractDir := flag.String("extract-dir", "", "Extract directory (overrides config)")
	overwrite := flag.Bool("overwrite", true, "Overwrite existing files when extracting")
	blockSize := flag.Int("block-size", protocols.DefaultBlockSize, "Download block size in bytes")
	historyPath := flag.String("history", "", "Path to watch history file (default ~/.rarfetch/history.json)")
	logDir := flag.String("log-dir", "", "Directory for rotating log files")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()

	core.InitLogger(*logDir, *debug)

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	cfgPath := *configPath
	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			slog.Error("cannot determine config path", "err", err)
			os.Exit(1)
		}
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Warn("config unreadable, using defaults", "path", cfgPath, "err", err)
	}
	applyOverrides(cfg, *host, *port, *user, *password, *downloadDir, *extractDir)

	ctx := context.Background()

	// extract works on a local archive; no connection needed.
	if args[0] == "extract" {
		if len(args) != 3 {
			usage()
			os.Exit(2)
		}
		if err := core.Extract(ctx, args[1], args[2], *overwrite); err != nil {
			slog.Error("extraction failed", "archive", args[1], "err", err)
			os.Exit(1)
		}
		return
	}

	session := newSession(cfg, *useSFTP, time.Duration(*timeout)*time.Second)
	if err := session.Connect(); err != nil {
		slog.Error("connection failed", "err", err)
		os.Exit(1)
	}
	defer session.Close()
	slog.Info("connected", "host", cfg.Host, "dir", session.CurrentDir())

	if cfg.Remember {
		if err := cfg.Save(cfgPath); err != nil {
			slog.Warn("failed to save config", "path", cfgPath, "err", err)
		}
	}

	switch args[0] {
	case "list":
		dir := ""
		if len(args) > 1 {
			dir = args[1]
		}
		runList(session, dir)

	case "get":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		local := ""
		if len(args) > 2 {
			local = args[2]
		}
		runGet(session, args[1], local, *blockSize)

	case "fetch":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		fetcher := &core.Fetcher{
			Session:     session,
			DownloadDir: cfg.DownloadDir,
			ExtractDir:  cfg.ExtractDir,
			Overwrite:   *overwrite,
			BlockSize:   *blockSize,
		}
		if _, err := fetcher.Fetch(ctx, args[1]); err != nil {
			slog.Error("fetch failed", "remote", args[1], "err", err)
			os.Exit(1)
		}

	case "watch":
		if len(args) < 3 {
			usage()
			os.Exit(2)
		}
		pattern := `\.rar$`
		if len(args) > 3 {
			pattern = args[3]
		}
		runWatch(session, cfg, core.WatchTask{
			RemoteDir: args[1],
			Schedule:  args[2],
			Pattern:   pattern,
		}, *historyPath, *overwrite, *blockSize)

	default:
		usage()
		os.Exit(2)
	}
}

func applyOverrides(cfg *config.Config, host string, port int, user, password, downloadDir, extractDir string) {
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if user != "" {
		cfg.User = user
	}
	if password != "" {
		cfg.Password = password
	}
	if downloadDir != "" {
		cfg.DownloadDir = downloadDir
	}
	if extractDir != "" {
		cfg.ExtractDir = extractDir
	}
}

func newSession(cfg *config.Config, useSFTP bool, timeout time.Duration) protocols.Session {
	if useSFTP {
		return &protocols.SFTPSession{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Timeout:  timeout,
		}
	}
	return &protocols.FTPSession{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Timeout:  timeout,
	}
}

func runList(session protocols.Session, dir string) {
	entries, err := session.List(dir)
	if err != nil {
		slog.Error("listing failed", "dir", dir, "err", err)
		os.Exit(1)
	}
	for _, e := range entries {
		size := ""
		if e.Kind == protocols.KindFile {
			size = humanSize(e.Size)
		}
		fmt.Printf("%-4s  %10s  %-14s  %s\n", e.Kind, size, e.Modified, e.Name)
	}
}

func runGet(session protocols.Session, remote, local string, blockSize int) {
	if local == "" {
		local = path.Base(remote)
	}
	var offset int64
	if info, err := os.Stat(local); err == nil && info.Mode().IsRegular() {
		offset = info.Size()
		slog.Info("resuming partial download", "local", local, "offset", offset)
	}
	err := session.Download(remote, local, protocols.DownloadOptions{
		BlockSize:    blockSize,
		ResumeOffset: offset,
		Progress:     consoleProgress(),
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		slog.Error("download failed", "remote", remote, "err", err)
		os.Exit(1)
	}
	slog.Info("download finished", "remote", remote, "local", local)
}

func runWatch(session protocols.Session, cfg *config.Config, task core.WatchTask, historyPath string, overwrite bool, blockSize int) {
	if historyPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			slog.Error("cannot determine history path", "err", err)
			os.Exit(1)
		}
		historyPath = path.Join(path.Dir(p), "history.json")
	}
	history := core.NewHistory(historyPath)
	if err := history.Load(); err != nil {
		slog.Warn("failed to load history", "path", historyPath, "err", err)
	}

	fetcher := &core.Fetcher{
		Session:     session,
		DownloadDir: cfg.DownloadDir,
		ExtractDir:  cfg.ExtractDir,
		Overwrite:   overwrite,
		BlockSize:   blockSize,
	}
	watcher, err := core.NewWatcher(fetcher, history, task)
	if err != nil {
		slog.Error("invalid watch task", "err", err)
		os.Exit(1)
	}
	if err := watcher.Start(); err != nil {
		slog.Error("failed to start watch", "err", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")
	watcher.Stop()
}

func consoleProgress() protocols.ProgressFunc {
	return func(done, total int64) {
		if total > 0 {
			fmt.Fprintf(os.Stderr, "\r%s / %s (%d%%)", humanSize(uint64(done)), humanSize(uint64(total)), done*100/total)
		} else {
			fmt.Fprintf(os.Stderr, "\r%s", humanSize(uint64(done)))
		}
	}
}

func humanSize(size uint64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := uint64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
