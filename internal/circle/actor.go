package circle

// Actor is the authenticated caller of an operation, as vouched for by the
// identity provider. It is passed explicitly into every operation that acts on
// behalf of someone.
type Actor struct {
	UserID         string
	Email          string
	EmailConfirmed bool
}

// requireConfirmed refuses anonymous actors and actors whose email the
// identity provider has not confirmed.
func (a Actor) requireConfirmed() error {
	if a.UserID == "" {
		return authorizationf("authentication required")
	}
	if !a.EmailConfirmed {
		return authorizationf("email address is not confirmed")
	}
	return nil
}
