// Command corpusctl loads corpus dumps into the quran-notes database and runs
// a few administrative operations without going through HTTP.
//
// It opens the same SQLite file as the server and calls the same services,
// so every write is authorized exactly as over the API: mutating commands
// need --user/--password of an approved admin.
//
//	corpusctl import dictionary words.txt.xz --user admin
//	corpusctl import translations sahih.txt --language en
//	corpusctl verse 2 255
//	corpusctl search mercy --lang en
//	corpusctl user approve <id>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/config"
	"github.com/sakif/quran-notes/internal/model"
	sqliteRepo "github.com/sakif/quran-notes/internal/repository/sqlite"
	"github.com/sakif/quran-notes/internal/service"
)

// CLI defines the command-line interface.
type CLI struct {
	config.Logging `embed:""`
	config.Storage `embed:""`

	User     string `name:"user" short:"u" env:"CORPUSCTL_USER" help:"Admin username for commands that change data."`
	Password string `name:"password" env:"CORPUSCTL_PASSWORD" help:"Admin password (prefer the environment variable)."`

	MaxImportBytes int64 `name:"max-import-bytes" env:"MAX_IMPORT_BYTES" default:"268435456" help:"Largest decompressed dump accepted."`

	Import  ImportGroup `cmd:"" help:"Replace a corpus table from a dump file"`
	Imports ImportsCmd  `cmd:"" help:"List past imports, newest first"`
	Verse   VerseCmd    `cmd:"" help:"Print the words and text of a verse"`
	Search  SearchCmd   `cmd:"" help:"Search verse texts"`
	Users   UserGroup   `cmd:"" name:"user" help:"Account administration"`
}

// ImportGroup contains the three table imports.
type ImportGroup struct {
	Dictionary   ImportDictionaryCmd   `cmd:"" help:"Replace the word dictionary"`
	Mapping      ImportMappingCmd      `cmd:"" help:"Replace the word-position mapping"`
	Translations ImportTranslationsCmd `cmd:"" help:"Replace the verse texts of one language"`
}

// UserGroup contains account administration.
type UserGroup struct {
	Approve UserApproveCmd `cmd:"" help:"Approve a registered account"`
	Promote UserPromoteCmd `cmd:"" help:"Set the role of an account"`
	Pending UserPendingCmd `cmd:"" help:"List accounts waiting for approval"`
}

// app holds what every command needs. It is bound into kong so Run methods
// receive it as an argument.
type app struct {
	cli     *CLI
	out     io.Writer
	logger  *slog.Logger
	auth    *service.AuthService
	corpus  *service.CorpusService
	db      *sqliteRepo.DB
	current *model.Actor
}

func newApp(cli *CLI, out, logOut io.Writer) (*app, error) {
	logger, err := cli.NewLogger(logOut)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cli.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqliteRepo.New(cli.DBPath)
	if err != nil {
		return nil, err
	}
	// No TokenService: corpusctl authenticates but never issues tokens.
	return &app{
		cli:    cli,
		out:    out,
		logger: logger,
		auth:   service.NewAuthService(db, nil, auth.NewPasswordService(), logger),
		corpus: service.NewCorpusService(db, cli.MaxImportBytes, logger),
		db:     db,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// actor authenticates --user/--password once and returns the account's
// actor. Read-only commands never call it.
func (a *app) actor(ctx context.Context) (model.Actor, error) {
	if a.current != nil {
		return *a.current, nil
	}
	if a.cli.User == "" {
		return model.Actor{}, errors.New("this command needs --user (or CORPUSCTL_USER) and CORPUSCTL_PASSWORD")
	}
	user, err := a.auth.Authenticate(ctx, a.cli.User, a.cli.Password)
	if err != nil {
		return model.Actor{}, err
	}
	actor := user.Actor()
	a.current = &actor
	return actor, nil
}

// =========================================================================
// IMPORT
// =========================================================================

type ImportDictionaryCmd struct {
	File string `arg:"" help:"Dump file, plain, .xz or .gz" type:"existingfile"`
}

func (c *ImportDictionaryCmd) Run(a *app) error {
	return a.runImport(c.File, func(ctx context.Context, actor model.Actor, r io.Reader) (*service.ImportReport, error) {
		return a.corpus.ImportDictionary(ctx, actor, r)
	})
}

type ImportMappingCmd struct {
	File string `arg:"" help:"Dump file, plain, .xz or .gz" type:"existingfile"`
}

func (c *ImportMappingCmd) Run(a *app) error {
	return a.runImport(c.File, func(ctx context.Context, actor model.Actor, r io.Reader) (*service.ImportReport, error) {
		return a.corpus.ImportWordMapping(ctx, actor, r)
	})
}

type ImportTranslationsCmd struct {
	File     string `arg:"" help:"Dump file, plain, .xz or .gz" type:"existingfile"`
	Language string `short:"l" required:"" help:"Language code of the translation, e.g. en"`
}

func (c *ImportTranslationsCmd) Run(a *app) error {
	return a.runImport(c.File, func(ctx context.Context, actor model.Actor, r io.Reader) (*service.ImportReport, error) {
		return a.corpus.ImportVerseTranslations(ctx, actor, c.Language, r)
	})
}

type importFunc func(ctx context.Context, actor model.Actor, r io.Reader) (*service.ImportReport, error)

func (a *app) runImport(path string, run importFunc) error {
	ctx := context.Background()
	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()

	report, err := run(ctx, actor, f)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Imported %s from %s\n", report.Run.Table, path)
	fmt.Fprintf(a.out, "  Accepted:    %d\n", report.Report.Accepted)
	fmt.Fprintf(a.out, "  Rejected:    %d\n", report.Report.Rejected)
	fmt.Fprintf(a.out, "  Compression: %s\n", report.Compression)
	fmt.Fprintf(a.out, "  BLAKE3:      %s\n", report.Run.Digest)
	for _, rej := range report.Report.Rejections {
		fmt.Fprintf(a.out, "  line %d: %s\n", rej.Line, rej.Reason)
	}
	// Committed, but the exit status still tells scripts that lines were lost.
	return report.Err()
}

type ImportsCmd struct {
	Limit int `default:"20" help:"Number of runs to show"`
}

func (c *ImportsCmd) Run(a *app) error {
	ctx := context.Background()
	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}
	runs, err := a.corpus.ListImportRuns(ctx, actor, c.Limit, 0)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTABLE\tLANG\tACCEPTED\tREJECTED\tDIGEST")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.16s\n",
			run.CreatedAt.Format("2006-01-02 15:04"), run.Table, run.Language, run.Accepted, run.Rejected, run.Digest)
	}
	return tw.Flush()
}

// =========================================================================
// READ
// =========================================================================

type VerseCmd struct {
	Surah int    `arg:"" help:"Surah number (1-114)"`
	Ayah  int    `arg:"" help:"Ayah number"`
	Lang  string `default:"en" help:"Language of the verse text and word meanings"`
}

func (c *VerseCmd) Run(a *app) error {
	ctx := context.Background()

	words, err := a.corpus.AssembleVerse(ctx, c.Surah, c.Ayah)
	if err != nil && !errors.Is(err, apperror.ErrOrphanWord) {
		return err
	}
	if err != nil {
		fmt.Fprintf(a.out, "warning: %v\n", err)
	}

	fmt.Fprintf(a.out, "%d:%d\n", c.Surah, c.Ayah)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, w := range words {
		if w.Orphan {
			fmt.Fprintf(tw, "  %d\t%s\t(unknown word)\n", w.Position, w.WordID)
			continue
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", w.Position, w.Arabic, w.Meanings[c.Lang])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	verse, err := a.corpus.GetVerse(ctx, c.Surah, c.Ayah, c.Lang)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(a.out, "\n%s\n", verse.Translation)
	return nil
}

type SearchCmd struct {
	Query string `arg:"" help:"Text to look for, case-insensitive"`
	Lang  string `default:"en" help:"Language to search"`
}

func (c *SearchCmd) Run(a *app) error {
	results, err := a.corpus.Search(context.Background(), c.Query, c.Lang)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(a.out, "%d:%d  %s\n", r.Surah, r.Ayah, r.Translation)
	}
	fmt.Fprintf(a.out, "%d result(s)\n", len(results))
	return nil
}

// =========================================================================
// USERS
// =========================================================================

type UserApproveCmd struct {
	ID string `arg:"" help:"User ID"`
}

func (c *UserApproveCmd) Run(a *app) error {
	ctx := context.Background()
	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}
	user, err := a.auth.ApproveUser(ctx, actor, c.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Approved %s (%s)\n", user.Username, user.ID)
	return nil
}

type UserPromoteCmd struct {
	ID   string `arg:"" help:"User ID"`
	Role string `arg:"" enum:"user,ulama,admin" help:"New role (${enum})"`
}

func (c *UserPromoteCmd) Run(a *app) error {
	ctx := context.Background()
	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}
	user, err := a.auth.SetRole(ctx, actor, c.ID, model.Role(c.Role))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s) is now %s\n", user.Username, user.ID, user.Role)
	return nil
}

type UserPendingCmd struct{}

func (c *UserPendingCmd) Run(a *app) error {
	ctx := context.Background()
	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}
	users, err := a.auth.ListUnapproved(ctx, actor, service.MaxListLimit, 0)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tREGISTERED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("corpusctl"),
		kong.Description("Corpus import and administration for quran-notes"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	a, err := newApp(&cli, os.Stdout, os.Stderr)
	ctx.FatalIfErrorf(err)

	err = ctx.Run(a)
	a.Close()
	ctx.FatalIfErrorf(err)
}
