package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"accountopen/internal/kyc/domain"
	"accountopen/internal/kyc/scorer"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

type applicantFlags struct {
	first string
	last  string
	email string
	phone string
	ssn   string
}

func (f applicantFlags) personalInfo() domain.PersonalInfo {
	info := domain.PersonalInfo{
		FirstName: f.first,
		LastName:  f.last,
		Email:     f.email,
		Phone:     f.phone,
		SSN:       f.ssn,
	}
	info.Normalize()
	return info
}

func (f *applicantFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.first, "first", "Jane", "applicant first name")
	cmd.Flags().StringVar(&f.last, "last", "Doe", "applicant last name")
	cmd.Flags().StringVar(&f.email, "email", "jane.doe@example.com", "applicant email")
	cmd.Flags().StringVar(&f.phone, "phone", "", "applicant phone")
	cmd.Flags().StringVar(&f.ssn, "ssn", "", "applicant SSN")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kycsim",
		Short:         "Run the mock KYC scorer offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("output", formatYAML, "output format: yaml or json")
	root.PersistentFlags().Uint64("seed", 42, "random seed")
	root.AddCommand(newScoreCmd(), newRunCmd())
	return root
}

func newScoreCmd() *cobra.Command {
	var applicant applicantFlags
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a single applicant and print the provider result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, format, err := commonSetup(cmd)
			if err != nil {
				return err
			}
			result, err := s.Score(cmd.Context(), applicant.personalInfo())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, result)
		},
	}
	applicant.bind(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		applicant applicantFlags
		trials    int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score the same applicant repeatedly and summarize the outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if trials <= 0 {
				return fmt.Errorf("--trials must be positive, got %d", trials)
			}
			s, format, err := commonSetup(cmd)
			if err != nil {
				return err
			}
			seed, _ := cmd.Flags().GetUint64("seed")
			summary, err := simulate(cmd.Context(), s, applicant.personalInfo(), trials)
			if err != nil {
				return err
			}
			summary.Seed = seed
			return render(cmd.OutOrStdout(), format, summary)
		},
	}
	applicant.bind(cmd)
	cmd.Flags().IntVar(&trials, "trials", 1000, "number of scoring runs")
	return cmd
}

func commonSetup(cmd *cobra.Command) (*scorer.Scorer, string, error) {
	format, _ := cmd.Flags().GetString("output")
	if format != formatYAML && format != formatJSON {
		return nil, "", fmt.Errorf("unsupported output format %q", format)
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	s := scorer.New(
		scorer.WithRandom(scorer.NewSeededRandom(seed)),
		scorer.WithDelayer(scorer.NewInstantDelayer()),
	)
	return s, format, nil
}

// Summary aggregates a batch of scoring runs.
type Summary struct {
	Trials                int                `json:"trials" yaml:"trials"`
	Seed                  uint64             `json:"seed" yaml:"seed"`
	Statuses              map[string]int     `json:"statuses" yaml:"statuses"`
	MeanConfidence        float64            `json:"meanConfidence" yaml:"meanConfidence"`
	ComponentFailureRates map[string]float64 `json:"componentFailureRates" yaml:"componentFailureRates"`
	OfacHits              int                `json:"ofacHits" yaml:"ofacHits"`
}

func simulate(ctx context.Context, s *scorer.Scorer, info domain.PersonalInfo, trials int) (*Summary, error) {
	summary := &Summary{
		Trials:                trials,
		Statuses:              make(map[string]int),
		ComponentFailureRates: make(map[string]float64),
	}
	failures := make(map[string]int)
	var confidenceSum float64

	for range trials {
		result, err := s.Score(ctx, info)
		if err != nil {
			return nil, err
		}
		summary.Statuses[result.Status.String()]++
		confidenceSum += result.Confidence
		for _, component := range result.Results.FailedComponents() {
			failures[component]++
		}
		if !result.Results.Ofac.Passed {
			summary.OfacHits++
		}
	}

	summary.MeanConfidence = round4(confidenceSum / float64(trials))
	for _, component := range componentNames() {
		summary.ComponentFailureRates[component] = round4(float64(failures[component]) / float64(trials))
	}
	return summary, nil
}

func componentNames() []string {
	names := []string{
		domain.ComponentIdentity,
		domain.ComponentAddress,
		domain.ComponentPhone,
		domain.ComponentEmail,
		domain.ComponentOfac,
	}
	sort.Strings(names)
	return names
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func render(w io.Writer, format string, v any) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err = w.Write(out)
	return err
}
