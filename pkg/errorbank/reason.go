package errorbank

// Reason is a stable machine-readable code clients branch on.
type Reason string

// Order placement.
const (
	ReasonCartEmpty         Reason = "CART_EMPTY"
	ReasonAddressNotFound   Reason = "ADDRESS_NOT_FOUND"
	ReasonAddressUnresolved Reason = "ADDRESS_UNRESOLVABLE"
	ReasonRoutePlanFailed   Reason = "ROUTE_PLAN_FAILED"
	ReasonOutOfRange        Reason = "OUT_OF_DELIVERY_RANGE"
)

// Order lifecycle.
const (
	ReasonOrderNotFound    Reason = "ORDER_NOT_FOUND"
	ReasonOrderStatusError Reason = "ORDER_STATUS_ERROR"
	ReasonOrderStateStale  Reason = "ORDER_STATE_STALE"
	ReasonActorNotAllowed  Reason = "ACTOR_NOT_ALLOWED"
)

// Catalog and cart.
const (
	ReasonItemNotFound      Reason = "ITEM_NOT_FOUND"
	ReasonItemUnavailable   Reason = "ITEM_UNAVAILABLE"
	ReasonComboEnableFailed Reason = "COMBO_ENABLE_FAILED"
)

// Generic.
const (
	ReasonInvalidArgument    Reason = "INVALID_ARGUMENT"
	ReasonCollaboratorFailed Reason = "TRY_AGAIN"
	ReasonInternal           Reason = "INTERNAL"
)
