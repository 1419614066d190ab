package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/entitlement/pkg/entitlement"
)

type emitFlags struct {
	subscription string
	bundle       string
	plan         string
	effective    string
}

func newEmitCmd(flags *rootFlags) *cobra.Command {
	ef := &emitFlags{}

	cmd := &cobra.Command{
		Use:   "emit <create|change|cancel>",
		Short: "Record a subscription API call and enqueue its event",
		Example: `  entitlementd emit create --plan intro-annual
  entitlementd emit change --subscription 6f1c2a9e-8a43-4d0e-9d7f-0b8e9c1e2f3a --plan fixed-1y
  entitlementd emit cancel --subscription 6f1c2a9e-8a43-4d0e-9d7f-0b8e9c1e2f3a --effective 2026-06-01T00:00:00Z`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(entitlement.ActionCreate), string(entitlement.ActionChange), string(entitlement.ActionCancel)},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := ef.request(args[0])
			if err != nil {
				return err
			}

			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			// Initialize loads the catalog; notifications stay off.
			if err := rt.engine.Initialize(ctx); err != nil {
				return fmt.Errorf("initialize engine: %w", err)
			}

			res, err := rt.api.Apply(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.SubscriptionID)
			if !res.PhaseScheduled {
				return fmt.Errorf("subscription %s recorded but its next phase was not scheduled", res.SubscriptionID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&ef.subscription, "subscription", "", "subscription id (generated for create when empty)")
	f.StringVar(&ef.bundle, "bundle", "", "bundle id for create")
	f.StringVar(&ef.plan, "plan", "", "target plan for create and change")
	f.StringVar(&ef.effective, "effective", "", "effective time in RFC 3339 (default now)")
	return cmd
}

func (ef *emitFlags) request(action string) (eventRequest, error) {
	a, err := entitlement.ParseAPIAction(action)
	if err != nil {
		return eventRequest{}, err
	}
	req := eventRequest{Action: a, Plan: ef.plan}

	if ef.subscription != "" {
		if req.SubscriptionID, err = uuid.Parse(ef.subscription); err != nil {
			return eventRequest{}, fmt.Errorf("invalid --subscription: %w", err)
		}
	}
	if ef.bundle != "" {
		if req.BundleID, err = uuid.Parse(ef.bundle); err != nil {
			return eventRequest{}, fmt.Errorf("invalid --bundle: %w", err)
		}
	}
	if ef.effective != "" {
		if req.EffectiveAt, err = time.Parse(time.RFC3339, ef.effective); err != nil {
			return eventRequest{}, fmt.Errorf("invalid --effective: %w", err)
		}
	}

	switch a {
	case entitlement.ActionCreate, entitlement.ActionChange:
		if req.Plan == "" {
			return eventRequest{}, errPlanRequired
		}
	}
	if a != entitlement.ActionCreate && req.SubscriptionID == uuid.Nil {
		return eventRequest{}, errIDRequired
	}
	return req, nil
}
