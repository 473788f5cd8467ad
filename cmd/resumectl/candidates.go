package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/pipeline"
)

var (
	candFilter entity.CandidateFilter
	exportOut  string
	expMin     int
	expMax     int

	dupName  string
	dupPhone string
	dupEmail string
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Search candidates, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		list, err := a.Candidates.List(cmd.Context(), candidateFilter())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

var candidateGetCmd = &cobra.Command{
	Use:   "get <candidate-id>",
	Short: "Show one candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCandidateID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		c, err := a.Candidates.GetCandidate(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	},
}

var candidateByTaskCmd = &cobra.Command{
	Use:   "by-task <task-id>",
	Short: "Show the candidate written by a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := common.NewValidator().Field("task_id", args[0], common.UUID).Err(); err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		c, err := a.Candidates.GetByTaskID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	},
}

var candidateDeleteCmd = &cobra.Command{
	Use:   "delete <candidate-id>",
	Short: "Delete a candidate; its tasks keep their history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCandidateID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Candidates.Delete(cmd.Context(), id); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted candidate %d\n", id)
		return err
	},
}

var checkDuplicateCmd = &cobra.Command{
	Use:   "check-duplicate",
	Short: "Check whether a candidate with this name, phone or email already exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := pipeline.CheckDuplicate(cmd.Context(), a.Dedup, dupName, dupPhone, dupEmail)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export candidates to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		data, err := a.Export.ExportCandidatesXLSX(cmd.Context(), candidateFilter())
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return err
		}
		a.Logger.Info("export.written", "path", exportOut, "bytes", len(data))
		return nil
	},
}

// candidateFilter applies the experience flags; negative values mean unbounded.
func candidateFilter() entity.CandidateFilter {
	f := candFilter
	f.ExperienceMin, f.ExperienceMax = nil, nil
	if expMin >= 0 {
		f.ExperienceMin = entity.Ptr(expMin)
	}
	if expMax >= 0 {
		f.ExperienceMax = entity.Ptr(expMax)
	}
	return f
}

func parseCandidateID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewAppError(common.CodeInvalid, "candidate id must be a positive integer", common.ErrInvalidInput)
	}
	return id, nil
}

func init() {
	for _, c := range []*cobra.Command{candidatesCmd, exportCmd} {
		f := c.Flags()
		f.StringVar(&candFilter.Name, "name", "", "name contains")
		f.StringVar(&candFilter.Phone, "phone", "", "phone contains")
		f.StringVar(&candFilter.Email, "email", "", "email contains")
		f.StringVar(&candFilter.Position, "position", "", "position contains")
		f.StringVar(&candFilter.Skill, "skill", "", "skills contain")
		f.StringVar(&candFilter.Status, "status", "", "candidate status")
		f.StringVar(&candFilter.EducationLevel, "education", "", "education level")
		f.IntVar(&candFilter.Offset, "offset", 0, "number of candidates to skip")
		f.IntVar(&expMin, "min-exp", -1, "at least this many years of experience")
		f.IntVar(&expMax, "max-exp", -1, "at most this many years of experience")
	}
	candidatesCmd.Flags().IntVar(&candFilter.Limit, "limit", 100, "maximum number of candidates")
	exportCmd.Flags().IntVar(&candFilter.Limit, "limit", 0, "maximum number of candidates; 0 exports all")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "candidates.xlsx", "output file")

	checkDuplicateCmd.Flags().StringVar(&dupName, "name", "", "candidate name (required)")
	checkDuplicateCmd.Flags().StringVar(&dupPhone, "phone", "", "phone number")
	checkDuplicateCmd.Flags().StringVar(&dupEmail, "email", "", "email address")
	_ = checkDuplicateCmd.MarkFlagRequired("name")

	candidatesCmd.AddCommand(candidateGetCmd, candidateByTaskCmd, candidateDeleteCmd)
	rootCmd.AddCommand(candidatesCmd, checkDuplicateCmd, exportCmd)
}
