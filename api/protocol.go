package api

const postMutationsMaxSize = 64 * 1024 // 64 KiB

// POST /api/rooms/:room/mutations response body
type postMutationsResponse struct {
	IdempotencyKeys []string `json:"idempotencyKeys,omitempty"`
	Applied         int      `json:"applied"`
	Ignored         int      `json:"ignored"`
	Duplicates      int      `json:"duplicates,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// GET /api/rooms/:room/role response body
type roleResponse struct {
	Role     string `json:"role"`
	CanEdit  bool   `json:"canEdit"`
	IsOwner  bool   `json:"isOwner"`
	IsViewer bool   `json:"isViewer"`
}
