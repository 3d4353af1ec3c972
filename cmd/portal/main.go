package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recruitport/recruitport-go/internal/applications"
	"github.com/recruitport/recruitport-go/internal/config"
	"github.com/recruitport/recruitport-go/internal/gateway"
	"github.com/recruitport/recruitport-go/internal/guard"
	"github.com/recruitport/recruitport-go/internal/jobs"
	"github.com/recruitport/recruitport-go/internal/model"
	"github.com/recruitport/recruitport-go/internal/notify"
	"github.com/recruitport/recruitport-go/internal/session"
	"github.com/recruitport/recruitport-go/internal/storage"
)

const usage = `recruitport: recruitment portal client

Usage:
  portal login -email <email> -password <password>
  portal register -email <email> -password <password> [-role Candidate|Recruiter|Admin]
  portal logout
  portal whoami
  portal jobs search [-q <term>] [-page <n>] [-limit <n>]
  portal jobs post -title <t> -description <d> -location <l> [-salary <range>]
  portal jobs delete -id <job-id>
  portal apply -job <job-id> -resume <file.pdf>
  portal applications
  portal review list -job <job-id>
  portal review status -id <app-id> -status <status>
  portal review resume -id <app-id> [-out <file>]
  portal notifications [watch|read -id <id>|broadcast -message <msg>]
`

// routeTable maps every command route to its access policy, the way
// the portal's page router mapped routes to allowed-role sets.
var routeTable = guard.Table{
	"login":                   {Name: "login", Public: true},
	"register":                {Name: "register", Public: true},
	"logout":                  {Name: "logout", Public: true},
	"whoami":                  {Name: "whoami"},
	"jobs.search":             {Name: "jobs.search", Allowed: []model.Role{model.RoleCandidate}},
	"jobs.post":               {Name: "jobs.post", Allowed: []model.Role{model.RoleRecruiter}},
	"jobs.delete":             {Name: "jobs.delete", Allowed: []model.Role{model.RoleRecruiter}},
	"apply":                   {Name: "apply", Allowed: []model.Role{model.RoleCandidate}},
	"applications":            {Name: "applications", Allowed: []model.Role{model.RoleCandidate}},
	"review.list":             {Name: "review.list", Allowed: []model.Role{model.RoleRecruiter}},
	"review.status":           {Name: "review.status", Allowed: []model.Role{model.RoleRecruiter}},
	"review.resume":           {Name: "review.resume", Allowed: []model.Role{model.RoleRecruiter}},
	"notifications":           {Name: "notifications"},
	"notifications.watch":     {Name: "notifications.watch"},
	"notifications.read":      {Name: "notifications.read"},
	"notifications.broadcast": {Name: "notifications.broadcast", Allowed: []model.Role{model.RoleAdmin}},
}

type app struct {
	cfg      config.Config
	store    *storage.Store
	gw       *gateway.Client
	sessions *session.Manager
	notify   *notify.Center
	jobs     *jobs.Service
	apps     *applications.Service
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfgPath := os.Getenv("PORTAL_CONFIG")
	if cfgPath == "" {
		cfgPath = "portal.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("initializing client", "error", err)
		os.Exit(1)
	}
	os.Exit(a.run(os.Args[1:]))
}

func newApp(cfg config.Config) (*app, error) {
	store := storage.New(cfg.StateFile)
	gw, err := gateway.New(cfg.BaseURL, store, gateway.Options{
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		gw:       gw,
		sessions: session.NewManager(gw, store),
		notify:   notify.New(gw),
		jobs:     jobs.NewService(gw),
		apps:     applications.NewService(gw),
	}

	gw.OnAuthExpired(func() {
		a.sessions.Invalidate()
		fmt.Fprintln(os.Stderr, "session expired, please run 'portal login' again")
	})
	return a, nil
}

func (a *app) run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	route, rest := resolveRoute(args)
	if route == "" {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	a.sessions.Initialize()

	switch outcome := routeTable.Decide(route, a.sessions.Snapshot()); outcome.Decision {
	case guard.Render:
		// fall through to the command
	case guard.RedirectLogin:
		fmt.Fprintf(os.Stderr, "please log in first (requested: %s)\n", outcome.From)
		return 1
	case guard.RedirectUnauthorized:
		fmt.Fprintf(os.Stderr, "your role does not permit %s\n", route)
		return 1
	case guard.ShowNeutral:
		fmt.Fprintln(os.Stderr, "session still loading, try again")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.dispatch(ctx, route, rest)
}

// resolveRoute turns argv into a route name plus the remaining flags.
func resolveRoute(args []string) (string, []string) {
	cmd := args[0]
	rest := args[1:]

	sub := func(defaultSub string, known ...string) (string, []string) {
		if len(rest) > 0 {
			for _, k := range known {
				if rest[0] == k {
					return cmd + "." + k, rest[1:]
				}
			}
		}
		if defaultSub == "" {
			return "", nil
		}
		return defaultSub, rest
	}

	switch cmd {
	case "login", "register", "logout", "whoami", "apply", "applications":
		return cmd, rest
	case "jobs":
		return sub("", "search", "post", "delete")
	case "review":
		return sub("", "list", "status", "resume")
	case "notifications":
		return sub("notifications", "watch", "read", "broadcast")
	}
	return "", nil
}

func (a *app) dispatch(ctx context.Context, route string, args []string) int {
	switch route {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		a.sessions.Logout()
		fmt.Println("logged out")
		return 0
	case "whoami":
		return a.cmdWhoami(ctx)
	case "jobs.search":
		return a.cmdJobSearch(ctx, args)
	case "jobs.post":
		return a.cmdJobPost(ctx, args)
	case "jobs.delete":
		return a.cmdJobDelete(ctx, args)
	case "apply":
		return a.cmdApply(ctx, args)
	case "applications":
		return a.cmdApplications(ctx)
	case "review.list":
		return a.cmdReviewList(ctx, args)
	case "review.status":
		return a.cmdReviewStatus(ctx, args)
	case "review.resume":
		return a.cmdReviewResume(ctx, args)
	case "notifications":
		return a.cmdNotifications(ctx)
	case "notifications.watch":
		return a.cmdNotificationsWatch(ctx)
	case "notifications.read":
		return a.cmdNotificationsRead(ctx, args)
	case "notifications.broadcast":
		return a.cmdBroadcast(ctx, args)
	}
	fmt.Fprint(os.Stderr, usage)
	return 2
}

func (a *app) cmdLogin(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	if res := a.sessions.Login(ctx, *email, *password); !res.OK {
		fmt.Fprintln(os.Stderr, res.Error)
		return 1
	}
	sess, _ := a.sessions.Current()
	fmt.Printf("logged in as %s (%s)\n", sess.Email, sess.Role)
	return 0
}

func (a *app) cmdRegister(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	role := fs.String("role", string(model.RoleCandidate), "account role")
	fs.Parse(args)

	req := model.RegisterRequest{Email: *email, Password: *password, Role: model.Role(*role)}
	if res := a.sessions.Register(ctx, req); !res.OK {
		fmt.Fprintln(os.Stderr, res.Error)
		return 1
	}
	fmt.Println("account created, log in to continue")
	return 0
}

func (a *app) cmdWhoami(ctx context.Context) int {
	user, err := a.sessions.Me(ctx)
	if err != nil {
		// Fall back to the decoded session when the gateway is unreachable.
		if sess, ok := a.sessions.Current(); ok {
			fmt.Printf("%s (%s) [cached]\n", sess.Email, sess.Role)
			return 0
		}
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Could not load profile"))
		return 1
	}
	fmt.Printf("%s (%s)\n", user.Email, user.Role)
	return 0
}

func (a *app) cmdJobSearch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("jobs search", flag.ExitOnError)
	q := fs.String("q", "", "search term")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", jobs.DefaultLimit, "page size")
	fs.Parse(args)

	if *page < 1 {
		*page = 1
	}
	list, err := a.jobs.Search(ctx, jobs.SearchParams{
		Query:  *q,
		Limit:  *limit,
		Offset: (*page - 1) * *limit,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to load jobs"))
		return 1
	}

	if len(list) == 0 {
		fmt.Println("no jobs found")
		return 0
	}
	for _, j := range list {
		fmt.Printf("%s  %-30s %-20s %s\n", j.ID, j.Title, j.Location, j.Status)
	}
	return 0
}

func (a *app) cmdJobPost(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("jobs post", flag.ExitOnError)
	title := fs.String("title", "", "job title")
	description := fs.String("description", "", "job description")
	location := fs.String("location", "", "job location")
	salary := fs.String("salary", "", "salary range")
	fs.Parse(args)

	job, err := a.jobs.Create(ctx, model.JobCreate{
		Title:       *title,
		Description: *description,
		Location:    *location,
		SalaryRange: *salary,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to post job"))
		return 1
	}
	fmt.Printf("posted job %s (%s)\n", job.ID, job.Title)
	return 0
}

func (a *app) cmdJobDelete(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("jobs delete", flag.ExitOnError)
	id := fs.String("id", "", "job id")
	fs.Parse(args)

	if err := a.jobs.Delete(ctx, *id); err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to delete job"))
		return 1
	}
	fmt.Println("job deleted")
	return 0
}

func (a *app) cmdApply(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	jobID := fs.String("job", "", "job id")
	resume := fs.String("resume", "", "path to resume PDF")
	fs.Parse(args)

	f, err := os.Open(*resume)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open resume: %v\n", err)
		return 1
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot stat resume: %v\n", err)
		return 1
	}

	app, err := a.apps.Submit(ctx, *jobID, filepath.Base(*resume), f, info.Size())
	if err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to submit application"))
		return 1
	}
	fmt.Printf("application %s submitted (%s)\n", app.ID, app.Status)
	return 0
}

func (a *app) cmdApplications(ctx context.Context) int {
	list, err := a.apps.Mine(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to load applications"))
		return 1
	}
	if len(list) == 0 {
		fmt.Println("no applications yet")
		return 0
	}
	for _, app := range list {
		fmt.Printf("%s  job=%s  %-12s applied %s\n",
			app.ID, app.JobID, app.Status, app.AppliedAt.Format(time.DateOnly))
	}
	return 0
}

func (a *app) cmdReviewList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("review list", flag.ExitOnError)
	jobID := fs.String("job", "", "job id")
	fs.Parse(args)

	list, err := a.apps.ForJob(ctx, *jobID)
	if err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to load applicants"))
		return 1
	}
	if len(list) == 0 {
		fmt.Println("no applicants yet")
		return 0
	}
	for _, app := range list {
		fmt.Printf("%s  candidate=%s  %-12s applied %s\n",
			app.ID, app.CandidateID, app.Status, app.AppliedAt.Format(time.DateOnly))
	}
	return 0
}

func (a *app) cmdReviewStatus(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("review status", flag.ExitOnError)
	id := fs.String("id", "", "application id")
	status := fs.String("status", "", "new status")
	fs.Parse(args)

	app, err := a.apps.SetStatus(ctx, *id, model.ApplicationStatus(*status))
	if err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to update status"))
		return 1
	}
	fmt.Printf("application %s is now %s\n", app.ID, app.Status)
	return 0
}

func (a *app) cmdReviewResume(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("review resume", flag.ExitOnError)
	id := fs.String("id", "", "application id")
	out := fs.String("out", "", "output file (defaults to <id>.pdf)")
	fs.Parse(args)

	data, _, err := a.apps.Resume(ctx, *id)
	if err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to download resume"))
		return 1
	}

	dest := *out
	if dest == "" {
		dest = *id + ".pdf"
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "cannot write %s: %v\n", dest, err)
		return 1
	}
	fmt.Printf("saved resume to %s (%d bytes)\n", dest, len(data))
	return 0
}

func (a *app) cmdNotifications(ctx context.Context) int {
	if err := a.notify.FetchAll(ctx); err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to load notifications"))
		return 1
	}

	items := a.notify.Notifications()
	if len(items) == 0 {
		fmt.Println("no notifications")
		return 0
	}
	for _, n := range items {
		marker := " "
		if !n.ReadStatus {
			marker = "*"
		}
		fmt.Printf("%s %s  [%s] %s\n", marker, n.ID, n.Kind, n.Message)
	}
	fmt.Printf("%d unread\n", a.notify.UnreadCount())
	return 0
}

func (a *app) cmdNotificationsWatch(ctx context.Context) int {
	fmt.Printf("watching notifications every %s (ctrl-c to stop)\n", a.cfg.PollInterval)

	// Expiry mid-watch stops the poller; no timer may outlive the
	// session.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.gw.OnAuthExpired(cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.notify.Run(ctx, a.cfg.PollInterval)
	}()

	last := -1
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return 0
		case <-ticker.C:
			if n := a.notify.UnreadCount(); n != last {
				fmt.Printf("unread: %d\n", n)
				last = n
			}
		}
	}
}

func (a *app) cmdNotificationsRead(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("notifications read", flag.ExitOnError)
	id := fs.String("id", "", "notification id")
	fs.Parse(args)

	// Populate the local store first so the optimistic flip has a target.
	if err := a.notify.FetchAll(ctx); err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to load notifications"))
		return 1
	}
	if err := a.notify.MarkRead(ctx, *id); err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Marked locally; gateway did not confirm"))
		return 1
	}
	fmt.Printf("marked read, %d unread\n", a.notify.UnreadCount())
	return 0
}

func (a *app) cmdBroadcast(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("notifications broadcast", flag.ExitOnError)
	message := fs.String("message", "", "message to broadcast")
	fs.Parse(args)

	if err := a.notify.Broadcast(ctx, *message); err != nil {
		fmt.Fprintln(os.Stderr, gateway.Message(err, "Failed to broadcast"))
		return 1
	}
	fmt.Println("broadcast sent")
	return 0
}
