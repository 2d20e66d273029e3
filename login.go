package bmauth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bridgemark/bmauth/identity"
	"github.com/bridgemark/bmauth/store"
)

// Login authenticates the credential and gates the result on the
// requested surface. The checks run in precedence order:
//
//  1. an identity holding the admin role is always turned away;
//  2. the partner surface admits only pure partners (partner role
//     without the consumer role);
//  3. the consumer surface admits anything except a pure partner.
//
// A rejection tears down everything the authenticate call stored, so
// the device is never left half-authenticated, and returns one of the
// role-gating sentinels; the caller keeps its login surface open and
// may retry with other credentials. A remote credential decline comes
// back as *CredentialError and belongs inline on the form.
//
// On acceptance the role-scoped storage namespace is written and the
// other role's namespace cleared (a device holds at most one active
// identity), and the result carries the navigation route: a pending
// deep-link entry recorded before login wins over the role's default
// landing route and is consumed exactly once.
func (c *Client) Login(ctx context.Context, cred Credential, target RoleTarget) (*LoginResult, error) {
	if target != TargetUser && target != TargetPartner {
		return nil, fmt.Errorf("login: unknown role target %q", target)
	}

	id, err := c.session.Login(ctx, cred)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.audit.Emit(AuditEvent{
			Timestamp: time.Now(),
			EventType: EventLoginFailure,
			Target:    string(target),
			Error:     err.Error(),
		})
		return nil, err
	}

	roles := id.Roles()
	switch {
	case roles.IsAdmin():
		return nil, c.rejectLogin(ctx, target, id, ErrAdminNotAllowed, MetricLoginRejectedAdmin)
	case target == TargetPartner && !roles.IsPurePartner():
		return nil, c.rejectLogin(ctx, target, id, ErrPartnerAccessDenied, MetricLoginRejectedPartner)
	case target == TargetUser && roles.IsPurePartner():
		return nil, c.rejectLogin(ctx, target, id, ErrUserAccessDenied, MetricLoginRejectedUser)
	}

	route, err := c.acceptLogin(ctx, target, id)
	if err != nil {
		return nil, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.audit.Emit(AuditEvent{
		Timestamp: time.Now(),
		EventType: EventLoginSuccess,
		UserID:    id.UserID,
		Target:    string(target),
		Route:     route,
		Success:   true,
	})
	c.log.Info().Int("userId", id.UserID).Str("target", string(target)).Str("route", route).Msg("login accepted")
	return &LoginResult{Identity: id, Route: route}, nil
}

// rejectLogin tears down the half-authenticated state a successful
// authenticate call left behind and surfaces the rejection sentinel.
func (c *Client) rejectLogin(ctx context.Context, target RoleTarget, id *identity.Identity, sentinel error, metric MetricID) error {
	c.metrics.Inc(metric)
	c.audit.Emit(AuditEvent{
		Timestamp: time.Now(),
		EventType: EventLoginRejected,
		UserID:    id.UserID,
		Target:    string(target),
		Error:     sentinel.Error(),
	})
	c.log.Info().
		Int("userId", id.UserID).
		Str("roleIds", id.RoleIDs).
		Str("target", string(target)).
		Msg("login rejected by role gate")
	if err := c.session.clearLocal(ctx); err != nil {
		c.log.Error().Err(err).Msg("teardown after login rejection")
	}
	return sentinel
}

func (c *Client) acceptLogin(ctx context.Context, target RoleTarget, id *identity.Identity) (string, error) {
	switch target {
	case TargetPartner:
		enc, err := id.Encode()
		if err != nil {
			return "", fmt.Errorf("login: encode partner: %w", err)
		}
		if err := c.store.SetValue(ctx, store.KeyPartner, enc); err != nil {
			return "", err
		}
		if err := c.store.SetValue(ctx, store.KeyPartnerID, strconv.Itoa(id.PartnerID)); err != nil {
			return "", err
		}
	case TargetUser:
		if err := c.store.DeleteValue(ctx, store.KeyPartner); err != nil {
			return "", err
		}
		if err := c.store.DeleteValue(ctx, store.KeyPartnerID); err != nil {
			return "", err
		}
	}
	return c.landingRoute(ctx, target)
}

// landingRoute resolves the post-login navigation target. A pending
// deep-link path wins, then (for consumer logins) a stored referral
// key; both are deleted on read so a second login cannot replay them.
func (c *Client) landingRoute(ctx context.Context, target RoleTarget) (string, error) {
	if next, err := c.store.Value(ctx, store.KeyNext); err != nil {
		return "", err
	} else if next != "" {
		if err := c.store.DeleteValue(ctx, store.KeyNext); err != nil {
			return "", err
		}
		return next, nil
	}

	if target == TargetUser {
		if ref, err := c.store.Value(ctx, store.KeyReferral); err != nil {
			return "", err
		} else if ref != "" {
			if err := c.store.DeleteValue(ctx, store.KeyReferral); err != nil {
				return "", err
			}
			return c.config.Routes.ReferralPathPrefix + ref, nil
		}
	}

	if target == TargetPartner {
		return c.config.Routes.PartnerHome, nil
	}
	return c.config.Routes.UserHome, nil
}

// SetReferral records a recommendation/referral key to be consumed by
// the next successful consumer login.
func (c *Client) SetReferral(ctx context.Context, key string) error {
	return c.store.SetValue(ctx, store.KeyReferral, key)
}

// SetPendingRoute records the path the user originally asked for, to be
// consumed by the next successful login of either role.
func (c *Client) SetPendingRoute(ctx context.Context, path string) error {
	return c.store.SetValue(ctx, store.KeyNext, path)
}
