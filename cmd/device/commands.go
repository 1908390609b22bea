package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/identity"
	"github.com/zoomi/household-auth/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Resolve and print the current identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state := device.start(cmd.Context())
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

var pairCmd = &cobra.Command{
	Use:   "pair <code>",
	Short: "Link this device to a child with a linking code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		device.start(ctx)

		result := device.store.PairDevice(ctx, args[0])
		if !result.OK {
			fmt.Fprintln(cmd.OutOrStdout(), describeFailure(result.Kind, result.Message))
			return result.Err()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Paired with %s.\n", result.Value.Name)
		printState(cmd.OutOrStdout(), device.store.Snapshot())
		return nil
	},
}

var signInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		ctx := cmd.Context()
		device.start(ctx)

		if err := device.store.SignIn(ctx, model.Credentials{Email: email, Password: password}); err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), device.store.Snapshot())
		return nil
	},
}

var signUpCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := signUpParamsFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		device.start(ctx)

		if err := device.store.SignUp(ctx, params); err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), device.store.Snapshot())
		return nil
	},
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and forget any pairing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		everywhere, _ := cmd.Flags().GetBool("everywhere")

		ctx := cmd.Context()
		device.start(ctx)

		if everywhere {
			if err := device.identity.SignOutEverywhere(ctx); err != nil {
				log.Warn().Err(err).Msg("remote sign-out everywhere failed")
			}
		}
		if err := device.store.SignOut(ctx); err != nil {
			log.Warn().Err(err).Msg("remote sign-out failed, local state cleared")
		}

		printState(cmd.OutOrStdout(), device.store.Snapshot())
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use <childID>",
	Short: "Choose which child a signed-in parent is looking at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		device.start(ctx)

		if err := useChild(ctx, device.gateway, device.store, args[0]); err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), device.store.Snapshot())
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetch the active child",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		childID, _ := cmd.Flags().GetString("child")

		ctx := cmd.Context()
		device.start(ctx)

		if childID != "" {
			if err := useChild(ctx, device.gateway, device.store, childID); err != nil {
				return err
			}
		}
		if err := device.store.RefreshActiveChild(ctx); err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), device.store.Snapshot())
		return nil
	},
}

var childrenCmd = &cobra.Command{
	Use:   "children",
	Short: "List the children of the signed-in parent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		children, err := device.gateway.ListChildren(cmd.Context())
		if err != nil {
			return err
		}
		printChildren(cmd.OutOrStdout(), children)
		return nil
	},
}

var addChildCmd = &cobra.Command{
	Use:   "add-child",
	Short: "Add a child to the signed-in parent's family",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		age, _ := cmd.Flags().GetInt("age")

		child, err := device.gateway.AddChild(cmd.Context(), name, age)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%d) with id %s.\n", child.Name, child.Age, child.ID)
		return nil
	},
}

var codeCmd = &cobra.Command{
	Use:   "code <childID>",
	Short: "Generate a linking code for a child's device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := device.pairing.GenerateLinkingCode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		fmt.Fprintln(cmd.OutOrStdout(), shareText(code))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print identity changes until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		unsubscribe := device.store.Subscribe(func(state identity.State) {
			if !state.IsLoading {
				printState(out, state)
			}
		})
		defer unsubscribe()

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			device.start(gctx)
			<-gctx.Done()
			return nil
		})

		g.Go(func() error {
			return device.identity.WatchSessionEvents(gctx)
		})

		err := g.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	signInCmd.Flags().String("email", "", "account email")
	signInCmd.Flags().String("password", "", "account password")
	_ = signInCmd.MarkFlagRequired("email")
	_ = signInCmd.MarkFlagRequired("password")

	signUpCmd.Flags().String("email", "", "account email")
	signUpCmd.Flags().String("password", "", "account password")
	signUpCmd.Flags().String("name", "", "full name")
	signUpCmd.Flags().String("role", string(model.RoleParent), "parent or child_independent")
	signUpCmd.Flags().String("child-name", "", "child name (independent child accounts)")
	signUpCmd.Flags().Int("child-age", 0, "child age (independent child accounts)")

	signOutCmd.Flags().Bool("everywhere", false, "also sign out every other device of this account")

	refreshCmd.Flags().String("child", "", "child to view first (parents only)")

	addChildCmd.Flags().String("name", "", "child name")
	addChildCmd.Flags().Int("age", 0, "child age")
	_ = addChildCmd.MarkFlagRequired("name")
	_ = addChildCmd.MarkFlagRequired("age")

	rootCmd.AddCommand(
		statusCmd, pairCmd, signInCmd, signUpCmd, signOutCmd,
		useCmd, refreshCmd, childrenCmd, addChildCmd, codeCmd, watchCmd,
	)
}

type childLookup interface {
	GetChild(ctx context.Context, childID string) (*model.Child, error)
}

type activeChildStore interface {
	Snapshot() identity.State
	SetActiveChild(child *model.Child)
}

// useChild makes childID the active child of the signed-in parent.
func useChild(ctx context.Context, gateway childLookup, store activeChildStore, childID string) error {
	if store.Snapshot().Identity.Mode != model.ModeParent {
		return apperrors.Forbidden("Only a signed-in parent can choose a child")
	}

	child, err := gateway.GetChild(ctx, childID)
	if err != nil {
		return err
	}
	if child == nil {
		return apperrors.NotFound("Child")
	}

	store.SetActiveChild(child)
	return nil
}

func signUpParamsFromFlags(cmd *cobra.Command) (model.SignUpParams, error) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	name, _ := cmd.Flags().GetString("name")
	role, _ := cmd.Flags().GetString("role")
	childName, _ := cmd.Flags().GetString("child-name")
	childAge, _ := cmd.Flags().GetInt("child-age")

	params := model.SignUpParams{
		Email:     strings.TrimSpace(email),
		Password:  password,
		FullName:  strings.TrimSpace(name),
		Role:      model.Role(role),
		ChildName: strings.TrimSpace(childName),
		ChildAge:  childAge,
	}
	if !params.Role.Valid() {
		return params, fmt.Errorf("unknown role %q", role)
	}
	if params.Role == model.RoleIndependentChild && params.ChildName == "" {
		params.ChildName = params.FullName
	}
	return params, nil
}
