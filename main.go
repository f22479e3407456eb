package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"repo-view/api"
	"repo-view/config"
	"repo-view/fetcher"
	"repo-view/helpers"
	"repo-view/highlight"
	"repo-view/model"
	"repo-view/parse"
	"repo-view/server"
	"repo-view/viewer"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logrus.Fatal(err)
	}
}

func run() error {
	viewURL := flag.String("url", "", "repository location: owner/id[/path] or a full view URL")
	user := flag.String("user", "", "signed-in user name (overrides config)")
	token := flag.String("token", "", "API token (overrides the token file)")
	download := flag.Bool("download", false, "download the repository archive")
	repos := flag.Bool("repos", false, "list your repositories")
	serve := flag.Bool("serve", false, "serve the local web viewer")
	httpAddr := flag.String("http", "", "HTTP listen `address` for -serve (must be loopback)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("app", "repo-view")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *user != "" {
		cfg.Username = *user
	}
	if *httpAddr != "" {
		cfg.ListenAddr = *httpAddr
	}
	if *token == "" {
		if *token, err = config.ReadToken(cfg.TokenPath); err != nil {
			return err
		}
	}

	client, err := api.NewClient(cfg.APIURL, *token, &http.Client{})
	if err != nil {
		return err
	}
	client.SetLogger(log.WithField("component", "api"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *serve:
		s, err := server.New(client, cfg.Username, server.WithLogger(log.WithField("component", "server")))
		if err != nil {
			return err
		}
		return s.ListenAndServe(ctx, cfg.ListenAddr)
	case *repos:
		return listRepositories(ctx, client)
	case *viewURL == "":
		flag.Usage()
		return flag.ErrHelp
	}

	ref, segments, err := parse.ParseViewURL(*viewURL)
	if err != nil {
		return fmt.Errorf("failed to parse repository location: %w", err)
	}

	downloader := fetcher.New(client, cfg.DownloadDir,
		fetcher.WithBarStyle(cfg.ProgressBarStyle),
		fetcher.WithLogger(log.WithField("component", "fetcher")),
	)
	downloader.Saved = func(path string, size int64) {
		fmt.Printf("[-] Saved %s (%s)\n", path, helpers.FormatBytes(size))
	}

	v := viewer.New(client, downloader, viewer.StaticUser(cfg.Username),
		viewer.WithLogger(log.WithField("component", "viewer")),
	)
	defer v.Close()

	v.Navigate(ref, segments)
	view, err := v.Wait(ctx)
	if err != nil {
		return err
	}
	if err := printView(view); err != nil {
		return err
	}

	if !*download {
		return nil
	}
	done, ok := v.RequestDownload(ctx)
	if !ok {
		return fmt.Errorf("download of %s/%s is not permitted", ref.Owner, ref.ID)
	}
	return <-done
}

func printView(view viewer.View) error {
	switch view.Status {
	case viewer.StatusError:
		return errors.New(view.Message)
	case viewer.StatusEmpty:
		fmt.Println(helpers.Colorize("No content.", helpers.Dim))
		return nil
	}

	fmt.Println(helpers.FormatBreadcrumbs(view.Breadcrumbs))
	if view.CanDownload {
		fmt.Println(helpers.Colorize("[download available: -download]", helpers.Green))
	}
	fmt.Println()

	switch c := view.Content.(type) {
	case *model.Directory:
		if !view.AtRoot() {
			fmt.Println(helpers.Colorize("../", helpers.Dim))
		}
		if len(c.Entries) == 0 {
			fmt.Println(helpers.Colorize("This directory is empty.", helpers.Dim))
		}
		for _, e := range c.Entries {
			fmt.Println(helpers.FormatEntry(e))
		}
	case *model.File:
		fmt.Println(helpers.Colorize(highlight.DisplayName(c.Path), helpers.Bold) + helpers.Colorize(" ("+view.Language+")", helpers.Dim))
		if !helpers.SupportsColor() {
			fmt.Print(c.Data)
			return nil
		}
		return highlight.Terminal(os.Stdout, view.Language, c.Data)
	}
	return nil
}

func listRepositories(ctx context.Context, client *api.Client) error {
	repos, err := client.Repositories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}
	if len(repos) == 0 {
		fmt.Println(helpers.Colorize("No repositories yet.", helpers.Dim))
		return nil
	}
	for _, r := range repos {
		visibility := helpers.Colorize("private", helpers.Yellow)
		if r.Public {
			visibility = helpers.Colorize("public", helpers.Green)
		}
		fmt.Printf("%s  %s  %s\n", r.UUID, helpers.Colorize(r.Name, helpers.Bold), visibility)
	}
	return nil
}
