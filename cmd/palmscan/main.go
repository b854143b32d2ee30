package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/quantumvote/palmscan/config"
)

func main() {
	var configPath string

	app := &cli.App{
		Name:  "palmscan",
		Usage: "Palm template capture, secure upload and matching evaluation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "conf",
				Aliases:     []string{"c"},
				Usage:       "TOML config file",
				EnvVars:     []string{config.EnvConfigPath},
				Destination: &configPath,
			},
		},
		Before: func(c *cli.Context) error {
			return setup(configPath)
		},
		After: func(c *cli.Context) error {
			return teardown()
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the local capture service",
				Action: serveAction,
			},
			{
				Name:  "register",
				Usage: "Enroll a voter's palm with the backend",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "voter", Aliases: []string{"v"}, Required: true},
					&cli.StringFlag{Name: "hand", Value: "right", Usage: "left or right"},
					&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "use an image file instead of the camera"},
				},
				Action: registerAction,
			},
			{
				Name:  "verify",
				Usage: "Verify a voter's palm against the backend",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "voter", Aliases: []string{"v"}, Required: true},
					&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "use an image file instead of the camera"},
				},
				Action: verifyAction,
			},
			{
				Name:  "encode",
				Usage: "Print the base64 template of an image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: true},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the template to this file"},
				},
				Action: encodeAction,
			},
			{
				Name:  "evaluate",
				Usage: "Compute ROC/AUC/EER over labelled template pairs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pairs", Aliases: []string{"p"}, Value: "pairs.csv"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "text, json or cbor"},
					&cli.IntFlag{Name: "samples", Usage: "operating points to print"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}},
				},
				Action: evaluateAction,
			},
			{
				Name:   "keygen",
				Usage:  "Print a random base64 AES-256 session key",
				Action: keygenAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}
