// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"net/http"
	"time"

	"github.com/signetd/signetd/internal/logging"
)

// handleResume is GET /resume?resume={id}: re-enter a suspended login after
// the subject completed the additional step.
func (c *Controller) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resumeID, ok := boundedQuery(r, "resume")
	if !ok {
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}
	if resumeID == "" {
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}

	principal, err := c.deps.Bridge.PartialIdentity(r)
	if err != nil {
		logging.Ctx(ctx).Info().Msg("resume without partial sign-in")
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}

	// The resume claim's value is the originating sign-in id; without it the
	// flow cannot be recovered.
	resumeClaim, ok := principal.FindResumeClaim(resumeID)
	if !ok {
		logging.Ctx(ctx).Warn().Str("resume_id", resumeID).Msg("partial principal missing resume claim")
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}
	signInID := resumeClaim.Value

	msg, ok := c.readSignInMessage(w, r, signInID)
	if !ok {
		return
	}

	// Promotion: a partial principal that has accumulated the full claim set
	// completes directly, shedding the bookkeeping claims first.
	if principal.HasAllClaims(AuthenticateResultClaimTypes) {
		principal.RemoveClaims(
			ClaimPartialLoginReturnURL,
			ClaimExternalProviderUserID,
			PartialLoginResumeClaimType(resumeID),
		)
		PartialLoginsTotal.WithLabelValues(PhaseResumed).Inc()
		c.deps.Events.Raise(ctx, Event{
			Name:      EventPartialLoginComplete,
			Time:      time.Now(),
			SubjectID: principal.Subject(),
			ClientID:  msg.ClientID,
			SignInID:  signInID,
		})
		c.signInAndRedirect(w, r, signInID, msg, FullLogin(principal), nil)
		return
	}

	// Otherwise the partial principal still describes an external identity;
	// rebuild it and let the user service try again with whatever the
	// subject supplied in the meantime.
	external, ok := ExternalIdentityFromPartial(principal)
	if !ok {
		logging.Ctx(ctx).Warn().Str("resume_id", resumeID).Msg("partial principal has neither full claim set nor external identity")
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}
	PartialLoginsTotal.WithLabelValues(PhaseResumed).Inc()
	c.completeExternal(w, r, signInID, msg, external)
}
