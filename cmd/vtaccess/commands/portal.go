package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
	"vtaccess/lib/cas"
	configlibsql "vtaccess/lib/configutil/libsql"
	"vtaccess/lib/course"
	"vtaccess/lib/hokiespa"
	"vtaccess/lib/mailer"
	"vtaccess/lib/scheduleio"
	"vtaccess/lib/schedulestore"
	"vtaccess/lib/serviceutil"
	"vtaccess/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const defaultStoreFile = "vtaccess.db"

var (
	scheduleSave    bool
	scheduleStored  bool
	scheduleXML     string
	scheduleCompare string

	examsSave   bool
	examsStored bool
	examsXML    string
	examsMailTo []string
)

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleSave, "save", false, "Store the schedule in the local database.")
	scheduleCmd.Flags().BoolVar(&scheduleStored, "stored", false, "Print the stored schedule instead of logging in.")
	scheduleCmd.Flags().StringVar(&scheduleXML, "xml", "", "Write the schedule to an xml file, keeping the other schedules in it.")
	scheduleCmd.Flag("xml").NoOptDefVal = scheduleio.DefaultSchedulesPath
	scheduleCmd.Flags().StringVar(&scheduleCompare, "compare", "", "Print the courses shared with each schedule in an xml file.")

	examsCmd.Flags().BoolVar(&examsSave, "save", false, "Store the exams in the local database.")
	examsCmd.Flags().BoolVar(&examsStored, "stored", false, "Print the stored exams instead of logging in.")
	examsCmd.Flags().StringVar(&examsXML, "xml", "", "Write the exams to an xml file.")
	examsCmd.Flag("xml").NoOptDefVal = scheduleio.DefaultExamsPath
	examsCmd.Flags().StringSliceVar(&examsMailTo, "mail-to", nil, "Email the exam schedule to these addresses, needs the smtp config.")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(examsCmd)
	rootCmd.AddCommand(historyCmd)
}

func requireCredentials(cfg Config) {
	if cfg.Username == "" || cfg.Password == "" {
		serviceutil.Fatal(
			"missing credentials",
			fmt.Errorf("set username and password in %s or %s and %s", configPath, usernameEnv, passwordEnv),
		)
	}
}

func openSession(ctx context.Context, cfg Config) *cas.Session {
	requireCredentials(cfg)
	fetchOpts, err := cfg.fetchOptions()
	if err != nil {
		serviceutil.Fatal("failed to set up fetching", err)
	}
	_, maxAge, _ := cfg.durations()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	session, err := cas.Open(ctx, cfg.Username, cfg.Password, cas.Options{
		TrustPath: cfg.TrustPath,
		Fetch:     fetchOpts,
		MaxAge:    maxAge,
	})
	if err != nil {
		serviceutil.Fatal("failed to log in", err)
	}
	return session
}

// portalSession is the part of *cas.Session the commands use.
type portalSession interface {
	hokiespa.Session
	Close(ctx context.Context) bool
}

// withPortal runs retrieve against Hokie SPA and logs the session out
// afterwards, whether or not retrieve succeeded.
func withPortal(ctx context.Context, session portalSession, retrieve func(client *hokiespa.Client) error) error {
	defer closeSession(ctx, session)
	client, err := hokiespa.NewClient(ctx, session, hokiespa.Options{})
	if err != nil {
		return err
	}
	return retrieve(client)
}

func openStore(ctx context.Context, cfg Config) (schedulestore.Store, *sql.DB) {
	storeCfg := cfg.Store
	if storeCfg.File == "" && storeCfg.URL == "" {
		storeCfg = configlibsql.Struct{File: defaultStoreFile}
	}
	db, err := storeCfg.OpenDB()
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	store := schedulestore.NewStore(db)
	err = store.Init(ctx)
	if err != nil {
		db.Close()
		serviceutil.Fatal("failed to initialize database", err)
	}
	return store, db
}

func closeSession(ctx context.Context, session portalSession) {
	if !session.Close(ctx) {
		slog.DebugContext(ctx, "portal did not acknowledge the logout")
	}
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Checks that the configured credentials can log into the portal.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		session := openSession(ctx, cfg)
		defer closeSession(ctx, session)
		fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
	},
}

func saveScheduleXML(path string, schedule *course.Schedule) error {
	store := scheduleio.New(path, "")
	var friends []*course.Schedule
	existing, err := store.LoadSchedules()
	switch {
	case err == nil && len(existing) > 1:
		friends = existing[1:]
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		slog.Warn("replacing unreadable schedule file", "path", path, "err", err)
	}
	return store.SaveSchedules(schedule, friends)
}

func compareSchedules(cmd *cobra.Command, path string, schedule *course.Schedule) {
	others, err := scheduleio.New(path, "").LoadSchedules()
	if err != nil {
		serviceutil.Fatal("failed to read schedules to compare", err)
	}
	for _, other := range others {
		if other.Owner == schedule.Owner {
			continue
		}
		shared := schedule.Shared(other)
		fmt.Fprintf(cmd.OutOrStdout(), "Shared with %s:\n", other.Owner)
		if shared.IsEmpty() {
			fmt.Fprintln(cmd.OutOrStdout(), "  nothing")
			continue
		}
		renderSchedule(cmd.OutOrStdout(), shared)
	}
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [term]",
	Short: "Prints your class schedule from Hokie SPA.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		term, err := termArg(args, 0)
		if err != nil {
			serviceutil.Fatal("invalid semester", err)
		}
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		var schedule *course.Schedule
		if scheduleStored {
			store, db := openStore(ctx, cfg)
			defer db.Close()
			var snapshot schedulestore.Snapshot
			schedule, snapshot, err = store.LatestSchedule(ctx, cfg.Username, term)
			if err != nil {
				serviceutil.Fatal("failed to load the stored schedule", err)
			}
			slog.InfoContext(ctx, "stored schedule", "taken_at", snapshot.TakenAt.Format(time.DateTime))
		} else {
			telemetry.InstrumentPerfStats(ctx, 5*time.Second)
			err = withPortal(ctx, openSession(ctx, cfg), func(client *hokiespa.Client) error {
				schedule, err = client.RetrieveSchedule(ctx, term)
				return err
			})
			if err != nil {
				serviceutil.Fatal("failed to retrieve schedule", err)
			}
		}

		renderSchedule(cmd.OutOrStdout(), schedule)

		if scheduleSave && !scheduleStored {
			store, db := openStore(ctx, cfg)
			defer db.Close()
			snapshot, err := store.SaveSchedule(ctx, cfg.Username, term, schedule)
			if err != nil {
				serviceutil.Fatal("failed to store schedule", err)
			}
			slog.InfoContext(ctx, "stored schedule", "snapshot", snapshot.ID.String())
		}
		if scheduleXML != "" {
			err = saveScheduleXML(scheduleXML, schedule)
			if err != nil {
				serviceutil.Fatal("failed to write schedule xml", err)
			}
			slog.InfoContext(ctx, "wrote schedule xml", "path", scheduleXML)
		}
		if scheduleCompare != "" {
			compareSchedules(cmd, scheduleCompare, schedule)
		}
	},
}

var examsCmd = &cobra.Command{
	Use:   "exams [term]",
	Short: "Prints your final exam times from Hokie SPA.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		term, err := termArg(args, 0)
		if err != nil {
			serviceutil.Fatal("invalid semester", err)
		}
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if len(examsMailTo) > 0 && cfg.Smtp == nil {
			serviceutil.Fatal("cannot mail exams", fmt.Errorf("--mail-to needs an smtp block in %s", configPath))
		}

		var exams []*course.Course
		if examsStored {
			store, db := openStore(ctx, cfg)
			defer db.Close()
			exams, _, err = store.Exams(ctx, cfg.Username, term)
			if err != nil {
				serviceutil.Fatal("failed to load the stored exams", err)
			}
		} else {
			telemetry.InstrumentPerfStats(ctx, 5*time.Second)
			err = withPortal(ctx, openSession(ctx, cfg), func(client *hokiespa.Client) error {
				exams, err = client.RetrieveExamSchedule(ctx, term)
				return err
			})
			if err != nil {
				serviceutil.Fatal("failed to retrieve exams", err)
			}
		}

		renderExams(cmd.OutOrStdout(), term, exams)

		if examsSave && !examsStored {
			store, db := openStore(ctx, cfg)
			defer db.Close()
			_, err = store.SaveExams(ctx, cfg.Username, term, exams)
			if err != nil {
				serviceutil.Fatal("failed to store exams", err)
			}
		}
		if examsXML != "" {
			err = scheduleio.New("", examsXML).SaveExams(exams, term)
			if err != nil {
				serviceutil.Fatal("failed to write exams xml", err)
			}
			slog.InfoContext(ctx, "wrote exams xml", "path", examsXML)
		}
		if len(examsMailTo) > 0 {
			err = mailer.New(*cfg.Smtp).SendExams(ctx, examsMailTo, term, exams)
			if err != nil {
				serviceutil.Fatal("failed to mail exams", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mailed %d exams.\n", len(exams))
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists the semesters with a stored schedule or exam list.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		store, db := openStore(ctx, cfg)
		defer db.Close()

		terms, err := store.Terms(ctx, cfg.Username)
		if err != nil {
			serviceutil.Fatal("failed to list stored semesters", err)
		}
		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Code", "Semester"})
		for _, term := range terms {
			t.AppendRow(table.Row{term.String(), term.Name()})
		}
		t.Render()
	},
}
