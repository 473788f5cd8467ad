package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

var (
	tasksStatus string
	tasksLimit  int
	tasksOffset int
)

var taskCmd = &cobra.Command{
	Use:   "task <task-id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := common.NewValidator().Field("task_id", args[0], common.UUID).Err(); err != nil {
			return err
		}
		id := uuid.MustParse(args[0])
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		t, err := a.Tasks.GetTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), t)
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var list []*entity.Task
		if tasksStatus != "" {
			st := constants.TaskStatus(tasksStatus)
			if !st.Valid() {
				return common.NewAppError(common.CodeInvalid, "unknown status "+tasksStatus, common.ErrInvalidInput)
			}
			list, err = a.Tasks.ListByStatus(cmd.Context(), st, tasksLimit, tasksOffset)
		} else {
			list, err = a.Tasks.List(cmd.Context(), tasksLimit, tasksOffset)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

var statsTopSkills int

type statsReport struct {
	Tasks      entity.TaskStats      `json:"tasks"`
	Candidates entity.CandidateStats `json:"candidates"`
	TopSkills  []entity.SkillCount   `json:"top_skills"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize tasks per status, candidates and the most common skills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		var rep statsReport
		if rep.Tasks, err = a.Tasks.Stats(ctx); err != nil {
			return err
		}
		if rep.Candidates, err = a.Candidates.Statistics(ctx); err != nil {
			return err
		}
		if rep.TopSkills, err = a.Candidates.SkillStats(ctx, statsTopSkills); err != nil {
			return err
		}
		if rep.TopSkills == nil {
			rep.TopSkills = []entity.SkillCount{}
		}
		return printJSON(cmd.OutOrStdout(), rep)
	},
}

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "only tasks in this status (uploaded, parsing, completed, failed, duplicate)")
	tasksCmd.Flags().IntVar(&tasksLimit, "limit", 100, "maximum number of tasks")
	tasksCmd.Flags().IntVar(&tasksOffset, "offset", 0, "number of tasks to skip")
	statsCmd.Flags().IntVar(&statsTopSkills, "top", 20, "number of skills to rank")
	rootCmd.AddCommand(taskCmd, tasksCmd, statsCmd)
}
