// Package authz decides which booking operations an identity may perform.
package authz

import (
	"fmt"

	"stayreserve/internal/domain"
)

type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) CanCreate(id *domain.Identity) error {
	if id == nil {
		return domain.ErrUnauthenticated
	}
	if !id.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrForbidden, id.Role)
	}
	return nil
}

// GuestFor returns the guest a new booking is made for. It is always the
// caller; naming anyone else is rejected.
func (g *Gate) GuestFor(id *domain.Identity, requested int64) (int64, error) {
	if err := g.CanCreate(id); err != nil {
		return 0, err
	}
	if requested != 0 && requested != id.UserID {
		return 0, fmt.Errorf("%w: cannot book on behalf of user %d", domain.ErrForbidden, requested)
	}
	return id.UserID, nil
}

func (g *Gate) CanDelete(id *domain.Identity) error {
	return requireAdmin(id)
}

func (g *Gate) CanListAll(id *domain.Identity) error {
	return requireAdmin(id)
}

func (g *Gate) CanListForUser(id *domain.Identity, userID int64) error {
	if id == nil {
		return domain.ErrUnauthenticated
	}
	if id.IsAdmin() || id.UserID == userID {
		return nil
	}
	return fmt.Errorf("%w: bookings of user %d", domain.ErrForbidden, userID)
}

func (g *Gate) CanView(id *domain.Identity, b *domain.Booking) error {
	if id == nil {
		return domain.ErrUnauthenticated
	}
	if id.IsAdmin() || id.UserID == b.GuestID {
		return nil
	}
	return fmt.Errorf("%w: booking %s", domain.ErrForbidden, b.ID)
}

func requireAdmin(id *domain.Identity) error {
	if id == nil {
		return domain.ErrUnauthenticated
	}
	if !id.IsAdmin() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}
