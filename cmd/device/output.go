package main

import (
	"fmt"
	"io"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/identity"
	"github.com/zoomi/household-auth/internal/model"
)

func printState(w io.Writer, state identity.State) {
	id := state.Identity

	switch id.Mode {
	case model.ModeParent:
		fmt.Fprintf(w, "Signed in as parent %s.\n", id.Profile.FullName)
		if id.Child != nil {
			fmt.Fprintf(w, "Viewing %s.\n", describeChild(*id.Child))
		}
	case model.ModeIndependentChild:
		fmt.Fprintf(w, "Signed in as %s.\n", describeChild(*id.Child))
	case model.ModeLinkedChild:
		fmt.Fprintf(w, "Linked device for %s.\n", describeChild(*id.Child))
	default:
		fmt.Fprintln(w, "Not signed in. Sign in, sign up or pair this device with a code.")
	}

	if state.Fault != nil {
		fmt.Fprintln(w, describeFailure(state.Fault.Code, state.Fault.Message))
	}
}

func printChildren(w io.Writer, children []model.Child) {
	if len(children) == 0 {
		fmt.Fprintln(w, "No children yet. Add one with add-child.")
		return
	}
	for _, child := range children {
		fmt.Fprintf(w, "%s  %s\n", child.ID, describeChild(child))
	}
}

func describeChild(child model.Child) string {
	return fmt.Sprintf("%s (%d), step %d of %d", child.Name, child.Age, child.CurrentStep, child.TotalSteps)
}

func describeFailure(kind apperrors.ErrorCode, message string) string {
	switch kind {
	case apperrors.ErrCodeInvalidCode:
		return "That code is not valid. Check it and try again."
	case apperrors.ErrCodeCodeExpired:
		return "That code has expired. Ask a parent for a new one."
	case apperrors.ErrCodeRemoteUnavailable:
		return "Zoomi could not be reached. Check the connection and try again."
	case apperrors.ErrCodeChildMissing:
		return "This account has no child record. Contact support."
	default:
		return message
	}
}

func shareText(code string) string {
	return fmt.Sprintf("Open Zoomi on your child's device, choose \"I have a code\" and enter %s.", code)
}
