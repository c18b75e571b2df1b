package order

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal orders accept no further status or item changes.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether staff may move an order from s to next.
// Setting the current status again is allowed and changes nothing.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusOpen:
		return next == StatusInProgress || next == StatusCompleted || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemPreparing, ItemReady, ItemServed:
		return true
	}
	return false
}

// Active items still need kitchen work.
func (s ItemStatus) Active() bool {
	return s == ItemPending || s == ItemPreparing
}

// InitialItemStatus is the status a new item starts in.
func InitialItemStatus(requiresProduction bool) ItemStatus {
	if requiresProduction {
		return ItemPending
	}
	return ItemReady
}

// DeriveStatus computes an order's status from its items. It only ever
// promotes open to in_progress; completion and cancellation stay explicit.
func DeriveStatus(current OrderStatus, items []ItemStatus) OrderStatus {
	if current != StatusOpen {
		return current
	}
	for _, s := range items {
		if s.Active() {
			return StatusInProgress
		}
	}
	return current
}
