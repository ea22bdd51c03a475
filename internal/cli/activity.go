package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/db"
	"github.com/tOgg1/approvalctl/internal/models"
)

var (
	activityType   string
	activityEntity string
	activitySince  string
	activityLimit  int
	activityCursor string
)

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activityShowCmd)

	activityCmd.Flags().StringVar(&activityType, "type", "", "event type (e.g. request.approved)")
	activityCmd.Flags().StringVar(&activityEntity, "entity", "", "entity type (session, workflow, request, system)")
	activityCmd.Flags().StringVar(&activitySince, "since", "", "only events newer than this duration (e.g. 2h)")
	activityCmd.Flags().IntVar(&activityLimit, "limit", 20, "maximum events to show")
	activityCmd.Flags().StringVar(&activityCursor, "cursor", "", "continue after this event id")
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the local activity journal",
	Long: `Show what this client did: sign-ins, workflow changes, request
decisions, refused screens and failed calls. The journal lives in the
local database and is trimmed to journal.max_count entries.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := activityQuery(activityType, activityEntity, activitySince, activityLimit, activityCursor)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runActivity(ctx, a, query)
		})
	},
}

func activityQuery(eventType, entity, since string, limit int, cursor string) (db.EventQuery, error) {
	query := db.EventQuery{Limit: limit, Newest: true, Cursor: strings.TrimSpace(cursor)}
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		t := models.EventType(eventType)
		query.Type = &t
	}
	if entity = strings.TrimSpace(entity); entity != "" {
		e := models.EntityType(entity)
		query.EntityType = &e
	}
	if since = strings.TrimSpace(since); since != "" {
		d, err := time.ParseDuration(since)
		if err != nil || d <= 0 {
			return db.EventQuery{}, invalidInput(fmt.Errorf("invalid --since %q", since))
		}
		t := time.Now().Add(-d)
		query.Since = &t
	}
	return query, nil
}

func runActivity(ctx context.Context, a *app, query db.EventQuery) error {
	page, err := a.journal.Query(ctx, query)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return WriteOutput(a.out, page)
	}
	if len(page.Events) == 0 {
		printf(a.out, "No activity\n")
		return nil
	}

	rows := make([][]string, 0, len(page.Events))
	for _, event := range page.Events {
		rows = append(rows, []string{
			formatTime(event.Timestamp),
			string(event.Type),
			string(event.EntityType) + ":" + event.EntityID,
			truncate(string(event.Payload), 60),
		})
	}
	if err := writeTable(a.out, []string{"TIME", "TYPE", "ENTITY", "DETAIL"}, rows); err != nil {
		return err
	}
	if page.NextCursor != "" {
		printf(a.out, "\nMore: approvalctl activity --cursor %s\n", page.NextCursor)
	}
	return nil
}

var activityShowCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show one journal entry with its full payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runActivityShow(ctx, a, args[0])
		})
	},
}

func runActivityShow(ctx context.Context, a *app, id string) error {
	event, err := a.journal.Get(ctx, id)
	if errors.Is(err, db.ErrEventNotFound) {
		return invalidInput(fmt.Errorf("no journal entry %q", id))
	}
	if err != nil {
		return err
	}
	if IsJSONOutput() {
		return WriteOutput(a.out, event)
	}

	printf(a.out, "ID:      %s\n", event.ID)
	printf(a.out, "Time:    %s\n", formatTime(event.Timestamp))
	printf(a.out, "Type:    %s\n", event.Type)
	printf(a.out, "Entity:  %s:%s\n", event.EntityType, event.EntityID)
	if len(event.Payload) > 0 {
		var pretty bytes.Buffer
		if json.Indent(&pretty, event.Payload, "", "  ") == nil {
			printf(a.out, "Payload:\n%s\n", pretty.String())
		} else {
			printf(a.out, "Payload: %s\n", event.Payload)
		}
	}
	return nil
}
