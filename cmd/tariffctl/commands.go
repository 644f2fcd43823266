package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/liamcoop/tariffs/internal/fixtures"
	"github.com/liamcoop/tariffs/tariff"
)

func itemsCommand() *cli.Command {
	return &cli.Command{
		Name:  "items",
		Usage: "List the sample item catalog",
		Action: func(c *cli.Context) error {
			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tPRICE")
			for _, it := range fixtures.Catalog() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", it.Name, it.Type, it.Price)
			}
			return w.Flush()
		},
	}
}

func patientsCommand() *cli.Command {
	return &cli.Command{
		Name:  "patients",
		Usage: "List the sample patient roster",
		Action: func(c *cli.Context) error {
			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tAGE\tGENDER\tDOB\tPRIVILEGE")
			for _, p := range fixtures.Patients() {
				privilege := string(p.Privilege)
				if privilege == "" {
					privilege = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", p.Name, p.Age, p.Gender, p.DateOfBirth.Format(time.DateOnly), privilege)
			}
			return w.Flush()
		},
	}
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Run tariffs over the sample basket for one patient",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "tariff",
				Aliases: []string{"t"},
				Value:   "middle-aged-man",
				Usage:   "Sample tariff ID or path to a YAML tariff file",
			},
			&cli.StringFlag{
				Name:    "patient",
				Aliases: []string{"p"},
				Value:   "Chalermpon",
				Usage:   "Patient name from the sample roster",
			},
			&cli.TimestampFlag{
				Name:   "at",
				Layout: time.RFC3339,
				Usage:  "Evaluation instant (default: now)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runEvaluate,
	}
}

func runEvaluate(c *cli.Context) error {
	patient, ok := fixtures.Patient(c.String("patient"))
	if !ok {
		return fmt.Errorf("unknown patient %q", c.String("patient"))
	}
	tariffs, err := loadTariffs(c.String("tariff"))
	if err != nil {
		return err
	}

	opts := []tariff.PipelineOption{tariff.WithObserver(tariff.LogObserver{})}
	if at := c.Timestamp("at"); at != nil {
		instant := *at
		opts = append(opts, tariff.WithClock(func() time.Time { return instant }))
	}
	pipeline := tariff.NewPipeline(opts...)

	// Tariffs run in order over the same basket; a later tariff overwrites the flags of an earlier one
	basket := fixtures.SampleBasket()
	var evaluations []*tariff.Evaluation
	for _, t := range tariffs {
		compiled, err := tariff.Compile(t)
		if err != nil {
			return fmt.Errorf("tariff %s: %w", t.ID, err)
		}
		ev, err := pipeline.Evaluate(patient, basket, compiled)
		if err != nil {
			return fmt.Errorf("tariff %s: %w", t.ID, err)
		}
		evaluations = append(evaluations, ev)
		basket = ev.Basket
	}

	switch c.String("format") {
	case "json":
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(evaluations)
	case "table":
		for i, ev := range evaluations {
			fmt.Fprintf(c.App.Writer, "%s: active=%t eligible=%t applied=%d\n",
				tariffs[i].Title, ev.Active, ev.PatientEligible, ev.AppliedCount())
		}
		return printBasket(c.App.Writer, basket)
	default:
		return fmt.Errorf("unknown format %q", c.String("format"))
	}
}

func printBasket(out io.Writer, basket tariff.Basket) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPRICE\tAMOUNT\tTOTAL\tAPPLIED")
	for _, line := range basket {
		applied := "-"
		if line.Applied != nil {
			applied = fmt.Sprint(*line.Applied)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", line.Name, line.Price, line.Quantity, line.Total, applied)
	}
	return w.Flush()
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate tariffs in a YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tariff",
				Aliases:  []string{"t"},
				Usage:    "Path to a YAML tariff file",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			tariffs, err := loadTariffs(c.String("tariff"))
			if err != nil {
				return err
			}

			var errs []error
			for _, t := range tariffs {
				if err := tariff.ValidateTariff(t); err != nil {
					fmt.Fprintf(c.App.Writer, "FAIL %s: %v\n", t.ID, err)
					errs = append(errs, fmt.Errorf("tariff %s: %w", t.ID, err))
					continue
				}
				fmt.Fprintf(c.App.Writer, "ok   %s\n", t.ID)
			}
			return errors.Join(errs...)
		},
	}
}
