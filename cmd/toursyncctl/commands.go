package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"toursync/internal/events"
	"toursync/internal/gateway/client"
	"toursync/internal/models"
	"toursync/internal/updater"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	url    string
	apiKey string
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.url, o.apiKey)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "toursyncctl",
		Short:         "Command line client for the toursync gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", envOr("TOURSYNC_URL", "http://127.0.0.1:8787"), "gateway base URL")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("TOURSYNC_API_KEY"), "gateway API key")

	root.AddCommand(
		newToursCommand(opts),
		newPropertiesCommand(opts),
		newSettingsCommand(opts),
		newDashboardCommand(opts),
		newReportCommand(opts),
		newCleanupCommand(opts),
		newWindowCommand(opts),
		newUpdateCheckCommand(opts),
		newEventsCommand(opts),
		newChannelsCommand(opts),
	)
	return root
}

func newToursCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "tours", Short: "List and edit tours"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every tour",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tours, err := opts.client().ListTours(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tours)
		},
	})

	var (
		tour     models.Tour
		tourTime string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Schedule a tour",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := time.Parse(time.RFC3339, tourTime)
			if err != nil {
				return fmt.Errorf("--time must be RFC 3339: %w", err)
			}
			tour.TourTime = t
			id, err := opts.client().CreateTour(cmd.Context(), tour)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.InsertAck{InsertedID: id})
		},
	}
	create.Flags().StringVar(&tour.ClientName, "client", "", "client name")
	create.Flags().StringVar(&tour.PhoneNumber, "phone", "", "client phone number")
	create.Flags().StringVar(&tour.PropertyID, "property", "", "property id")
	create.Flags().StringVar(&tour.PropertyAddress, "address", "", "property address shown in lists")
	create.Flags().StringVar(&tourTime, "time", "", "tour time, RFC 3339")
	create.Flags().StringVar((*string)(&tour.Status), "status", "", "scheduled, completed, cancelled or no-show")
	create.Flags().StringVar(&tour.Notes, "notes", "", "free-form notes")
	_ = create.MarkFlagRequired("client")
	_ = create.MarkFlagRequired("time")
	cmd.AddCommand(create)

	cmd.AddCommand(newUpdateCommand("update <id>", "Patch a tour", func(cmd *cobra.Command, id string, patch models.Patch) error {
		n, err := opts.client().UpdateTour(cmd.Context(), id, patch)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), models.UpdateAck{ModifiedCount: n})
	}))

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tour",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := opts.client().DeleteTour(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.DeleteAck{DeletedCount: n})
		},
	})
	return cmd
}

func newPropertiesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "properties", Short: "List and edit properties"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every property",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			properties, err := opts.client().ListProperties(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), properties)
		},
	})

	var property models.Property
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a property",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := opts.client().CreateProperty(cmd.Context(), property)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.InsertAck{InsertedID: id})
		},
	}
	create.Flags().StringVar(&property.Address, "address", "", "street address")
	create.Flags().StringVar((*string)(&property.Type), "type", "", "house, apartment, duplex, townhouse or commercial")
	create.Flags().IntVar(&property.Bedrooms, "bedrooms", 0, "bedroom count")
	create.Flags().IntVar(&property.Bathrooms, "bathrooms", 0, "bathroom count")
	create.Flags().Float64Var(&property.RentPrice, "rent", 0, "monthly rent")
	create.Flags().StringVar(&property.Description, "description", "", "listing description")
	_ = create.MarkFlagRequired("address")
	_ = create.MarkFlagRequired("type")
	cmd.AddCommand(create)

	cmd.AddCommand(newUpdateCommand("update <id>", "Patch a property", func(cmd *cobra.Command, id string, patch models.Patch) error {
		n, err := opts.client().UpdateProperty(cmd.Context(), id, patch)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), models.UpdateAck{ModifiedCount: n})
	}))

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a property with no tours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := opts.client().DeleteProperty(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.DeleteAck{DeletedCount: n})
		},
	})
	return cmd
}

func newUpdateCommand(use, short string, apply func(*cobra.Command, string, models.Patch) error) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Example: `  toursyncctl tours update 65f1c0ffee65f1c0ffee65f1 --set status=completed
  toursyncctl properties update 65f1c0ffee65f1c0ffee65f1 --set rent_price=1850 --set bedrooms=3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parsePatch(sets)
			if err != nil {
				return err
			}
			return apply(cmd, args[0], patch)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value; values that parse as JSON keep their type")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

// parsePatch turns field=value pairs into a patch. 3 and true stay a number
// and a bool; anything that is not JSON is a string.
func parsePatch(pairs []string) (models.Patch, error) {
	patch := make(models.Patch, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q: expected field=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		patch[key] = v
	}
	return patch, nil
}

func newSettingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Read or replace settings"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := opts.client().GetSettings(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), settings)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <file|->",
		Short: "Replace settings with a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var settings models.Settings
			if err := json.NewDecoder(r).Decode(&settings); err != nil {
				return fmt.Errorf("decode settings: %w", err)
			}
			return opts.client().UpdateSettings(cmd.Context(), settings)
		},
	})
	return cmd
}

func newDashboardCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show tour counts and the next upcoming tours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := opts.client().DashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	var week string
	cmd := &cobra.Command{
		Use:   "report <property-id>",
		Short: "Weekly tour report for a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := opts.client().WeeklyReport(cmd.Context(), args[0], models.ReportWeek(week))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&week, "week", string(models.LastWeek), "current or last")
	return cmd
}

func newCleanupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove finished tours older than 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := opts.client().CleanupOldTours(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.DeleteAck{DeletedCount: n})
		},
	}
}

func newWindowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "window <minimize|maximize|close>",
		Short:     "Send a window command to the desktop shell",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"minimize", "maximize", "close"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			switch args[0] {
			case "minimize":
				return c.MinimizeWindow(cmd.Context())
			case "maximize":
				return c.MaximizeWindow(cmd.Context())
			default:
				return c.CloseWindow(cmd.Context())
			}
		},
	}
}

func newUpdateCheckCommand(opts *rootOptions) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "check-updates",
		Short: "Ask the gateway to check for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.client()
			if wait <= 0 {
				return c.CheckForUpdates(cmd.Context())
			}

			// The stream is open before the check starts, so no status is missed.
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			stream, err := c.Dial(ctx)
			if err != nil {
				return err
			}
			defer stream.Close()

			if err := c.CheckForUpdates(cmd.Context()); err != nil {
				return err
			}
			return stream.Run(ctx, func(e events.Event) {
				if e.Type != events.EventUpdateStatus {
					return
				}
				var status events.UpdateStatusPayload
				if json.Unmarshal(e.Payload, &status) == nil {
					fmt.Fprintln(cmd.OutOrStdout(), formatStatus(status))
					if status.Message != updater.MsgChecking {
						cancel()
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "stream status messages for up to this long")
	return cmd
}

func formatStatus(s events.UpdateStatusPayload) string {
	line := s.Message
	if s.URL != "" {
		line += " " + s.URL
	}
	if s.Notes != "" {
		line += "\n" + s.Notes
	}
	return line
}

func newEventsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Stream gateway events as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			return opts.client().Subscribe(cmd.Context(), func(e events.Event) {
				_ = enc.Encode(e)
			})
		},
	}
}

func newChannelsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List the channels the gateway serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			channels, err := opts.client().Channels(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), channels)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
