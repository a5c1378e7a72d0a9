package flags

import "github.com/urfave/cli/v2"

const (
	NodeCategory    = "NODE"
	EconomyCategory = "ECONOMY"
	APICategory     = "API"
	LoggingCategory = "LOGGING AND DEBUGGING"
	MiscCategory    = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}

// NewApp creates a cli app with the project's standard metadata.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = usage
	app.Copyright = "Copyright 2024-2026 The Kodiak Authors"
	return app
}
