package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	_ "modernc.org/sqlite"
)

type CLI struct {
	Globals

	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the web interface (default)."`
	Estimate EstimateCmd `cmd:"" help:"Print the historical average for a city and period."`
	Predict  PredictCmd  `cmd:"" help:"Print the trained model's estimate for a city, month and year."`
	Import   ImportCmd   `cmd:"" help:"Load the dataset and store it as a SQLite snapshot."`
}

type Globals struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	Data       string `help:"Dataset location: local path, http(s):// or ftp:// URL." default:"data/temperaturas.csv" env:"TEMPMX_DATA"`
	DB         string `name:"db" help:"Path to the SQLite snapshot database." env:"TEMPMX_DB"`
	FromDB     bool   `name:"from-db" help:"Load observations from the last SQLite snapshot instead of --data." env:"TEMPMX_FROM_DB"`
	Encoding   string `help:"Text encoding of the dataset (auto, utf-8, windows-1252, iso-8859-1...)." default:"auto" env:"TEMPMX_ENCODING"`
	Delimiter  string `help:"Field delimiter; use 'tab' for TSV." default:"," env:"TEMPMX_DELIMITER"`
	PeriodKind string `help:"How the period column is interpreted." enum:"month,label" default:"month" env:"TEMPMX_PERIOD_KIND"`

	CityColumn    string `help:"Header of the city column (auto-detected when empty)." env:"TEMPMX_CITY_COLUMN"`
	PeriodColumn  string `help:"Header of the period column (auto-detected when empty)." env:"TEMPMX_PERIOD_COLUMN"`
	TempColumn    string `help:"Header of the temperature column (auto-detected when empty)." env:"TEMPMX_TEMP_COLUMN"`
	CountryColumn string `help:"Header of the country column, used with --country." env:"TEMPMX_COUNTRY_COLUMN"`
	Country       string `help:"Keep only rows of this country (e.g. Mexico)." env:"TEMPMX_COUNTRY"`

	Model         string `help:"Linear model artifact (JSON) location." env:"TEMPMX_MODEL"`
	Schema        string `help:"Feature schema location, required with --model or --model-endpoint." env:"TEMPMX_SCHEMA"`
	ModelEndpoint string `help:"Remote inference endpoint used instead of --model." env:"TEMPMX_MODEL_ENDPOINT"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tempmexico"),
		kong.Description("Estimate average temperatures of Mexican cities from historical data."),
		kong.UsageOnError(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&cli.Globals); err != nil {
		log.Fatalf("%s: %v", kctx.Command(), err)
	}
}
