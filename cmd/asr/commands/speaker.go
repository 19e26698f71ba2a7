package commands

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/asr/pkg/cli"
	"github.com/haivivi/asr/pkg/enroll"
	"github.com/haivivi/asr/pkg/voiceprint"
)

var (
	speakerAudio  audioFlags
	speakerOutput string
)

var speakerCmd = &cobra.Command{
	Use:   "speaker",
	Short: "Manage enrolled speakers",
	Long: `Manage the speakers recognition results are matched against.

Enrolled profiles live in the speaker database (speakers.db in the
configuration). Enrolling needs a speaker model (speakers.model).`,
}

var speakerEnrollCmd = &cobra.Command{
	Use:   "enroll <speaker> <file>...",
	Short: "Enroll recordings of a speaker",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rate := globalConfig.SampleRate
		m, err := openSpeakerModel(ctx)
		if err != nil {
			return err
		}
		defer m.Release()
		db, err := openSpeakerDB()
		if err != nil {
			return err
		}
		defer db.Close()

		e := enroll.NewEnroller(db, enroll.WithLogger(logger))
		var p enroll.Profile
		for _, file := range args[1:] {
			samples, err := speakerAudio.samples(cmd, file, rate)
			if err != nil {
				return err
			}
			if p, err = e.EnrollAudio(ctx, m, args[0], float32(rate), samples); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "enrolled %s (%d utterances)", p.Speaker, p.NumUtts)
		return nil
	},
}

// profileList renders enrolled profiles.
type profileList []enroll.Profile

func (l profileList) Table() cli.Table {
	t := cli.Table{Headers: []string{"SPEAKER", "UTTERANCES", "DIM", "UPDATED"}}
	for _, p := range l {
		t.Rows = append(t.Rows, []string{p.Speaker, strconv.Itoa(p.NumUtts), strconv.Itoa(len(p.Vector)), p.Updated.Format(time.DateTime)})
	}
	return t
}

var speakerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled speakers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openSpeakerDB()
		if err != nil {
			return err
		}
		defer db.Close()
		list := profileList{}
		for p, err := range db.List(cmd.Context()) {
			if err != nil {
				return err
			}
			list = append(list, p)
		}
		return cli.Output(list, cli.OutputOptions{Format: cli.OutputFormat(speakerOutput), Writer: cmd.OutOrStdout()})
	},
}

var speakerRemoveCmd = &cobra.Command{
	Use:   "remove <speaker>",
	Short: "Remove an enrolled speaker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openSpeakerDB()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "removed %s", args[0])
		return nil
	},
}

// scoreList renders identification scores, best first.
type scoreList voiceprint.ScoreSet

func (l scoreList) Table() cli.Table {
	t := cli.Table{Headers: []string{"SPEAKER", "SCORE"}}
	for _, s := range l {
		t.Rows = append(t.Rows, []string{s.Speaker, strconv.FormatFloat(s.Score, 'f', 3, 64)})
	}
	return t
}

var speakerIdentifyCmd = &cobra.Command{
	Use:   "identify <file>",
	Short: "Score a recording against the enrolled speakers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate := globalConfig.SampleRate
		m, err := openSpeakerModel(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Release()
		samples, err := speakerAudio.samples(cmd, args[0], rate)
		if err != nil {
			return err
		}
		scores, err := enroll.Identify(m, float32(rate), samples)
		if err != nil {
			return err
		}
		slices.SortFunc(scores, func(a, b voiceprint.Score) int { return cmp.Compare(b.Score, a.Score) })
		return cli.Output(scoreList(scores), cli.OutputOptions{Format: cli.OutputFormat(speakerOutput), Writer: cmd.OutOrStdout()})
	},
}

func init() {
	speakerAudio.register(speakerEnrollCmd)
	speakerAudio.register(speakerIdentifyCmd)
	speakerCmd.PersistentFlags().StringVarP(&speakerOutput, "output", "o", "table", "output format: table, yaml, json")

	speakerCmd.AddCommand(speakerEnrollCmd, speakerListCmd, speakerRemoveCmd, speakerIdentifyCmd)
	rootCmd.AddCommand(speakerCmd)
}
