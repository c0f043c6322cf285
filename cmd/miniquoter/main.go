package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/miniquoter/internal/api"
	"github.com/lox/miniquoter/internal/ingest"
	"github.com/lox/miniquoter/internal/locator"
	"github.com/lox/miniquoter/internal/quote"
	"github.com/lox/miniquoter/internal/report"
)

type CLI struct {
	Globals

	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	Serve         ServeCmd         `cmd:"" default:"1" help:"Run the web quoter."`
	Quote         QuoteCmd         `cmd:"" help:"Run one quote and print the comparison."`
	Locate        LocateCmd        `cmd:"" help:"Show the nearest weather station for a ZIP code."`
	FetchStations FetchStationsCmd `cmd:"" name:"fetch-stations" help:"Download the station degree-day table over FTP."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("miniquoter"),
		kong.Description("Estimate annual savings from envelope and HVAC upgrades."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

type ServeCmd struct {
	Port        string `default:"8080" env:"PORT" help:"HTTP server port."`
	NoScheduler bool   `name:"no-scheduler" help:"Disable housekeeping jobs."`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := g.setup(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if !c.NoScheduler {
		scheduler := ingest.NewScheduler(app.limiter, app.store, g.postalSource())
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	} else {
		log.Println("scheduler disabled (--no-scheduler)")
	}

	server := api.NewServer(app.store, app.quotes, c.Port)
	log.Printf("starting server on :%s", c.Port)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

type QuoteCmd struct {
	ZIP           string  `arg:"" help:"Building ZIP code."`
	SqFt          float64 `name:"sqft" default:"10000" help:"Conditioned floor area in square feet."`
	PricePerKWh   float64 `name:"price-per-kwh" default:"0.15" help:"Electricity price in $/kWh."`
	PricePerTherm float64 `name:"price-per-therm" default:"1.20" help:"Gas price in $/therm."`
	BaseR         float64 `name:"base-r" default:"10" help:"Baseline effective R-value."`
	BaseAFUE      float64 `name:"base-afue" default:"0.80" help:"Baseline furnace AFUE."`
	BaseSEER      float64 `name:"base-seer" default:"13" help:"Baseline cooling SEER."`
	PropR         float64 `name:"prop-r" default:"20" help:"Upgraded effective R-value."`
	PropAFUE      float64 `name:"prop-afue" default:"0.95" help:"Upgraded furnace AFUE."`
	PropSEER      float64 `name:"prop-seer" default:"18" help:"Upgraded cooling SEER."`
	NoNarrative   bool    `name:"no-narrative" help:"Skip the generated summary."`
	Identity      string  `default:"cli" help:"Identity charged against the daily limit."`
	Format        string  `enum:"table,csv,json" default:"table" help:"Output format (table, csv, json)."`
}

func (c *QuoteCmd) request() quote.Request {
	return quote.Request{
		ZIP:           c.ZIP,
		SqFt:          c.SqFt,
		PricePerTherm: c.PricePerTherm,
		PricePerKWh:   c.PricePerKWh,
		Baseline:      quote.Scenario{RValue: c.BaseR, AFUE: c.BaseAFUE, SEER: c.BaseSEER},
		Proposed:      quote.Scenario{RValue: c.PropR, AFUE: c.PropAFUE, SEER: c.PropSEER},
		SkipNarrative: c.NoNarrative,
	}
}

func (c *QuoteCmd) Run(g *Globals) error {
	ctx := context.Background()
	app, err := g.setup(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.quotes.Run(ctx, c.Identity, c.request())
	if err != nil {
		return err
	}

	switch c.Format {
	case "csv":
		return report.WriteCSV(os.Stdout, res)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return report.WriteTable(os.Stdout, res)
	}
}

type LocateCmd struct {
	ZIP  string `arg:"" help:"ZIP code to resolve."`
	JSON bool   `name:"json" help:"Print the location as JSON."`
}

func (c *LocateCmd) Run(g *Globals) error {
	ctx := context.Background()
	app, err := g.setup(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	loc, err := app.quotes.Locator().Locate(ctx, c.ZIP)
	if err != nil {
		return err
	}
	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(loc)
	}
	fmt.Printf("%s: %s (%.1f mi)  HDD65 %.0f  CDD65 %.0f\n",
		loc.Name, loc.NearestStation, loc.DistanceMiles, loc.HDD65, loc.CDD65)
	return nil
}

type FetchStationsCmd struct {
	Source string `arg:"" optional:"" help:"FTP location, ftp://host/path. Defaults to --stations-ftp."`
	Out    string `short:"o" help:"Write the validated table to this file instead of stdout."`
}

func (c *FetchStationsCmd) Run(g *Globals) error {
	source := c.Source
	if source == "" {
		source = g.StationsFTP
	}
	if source == "" {
		return fmt.Errorf("no FTP source: pass one or set --stations-ftp")
	}

	src, err := ingest.ParseFTPSource(source)
	if err != nil {
		return err
	}
	table, err := src.Fetch(context.Background())
	if err != nil {
		return fmt.Errorf("fetch %s: %w", src, err)
	}
	log.Printf("fetched %d stations from %s", table.Len(), src)

	if c.Out == "" {
		return locator.WriteStations(os.Stdout, table)
	}
	f, err := os.Create(c.Out)
	if err != nil {
		return err
	}
	if err := locator.WriteStations(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
