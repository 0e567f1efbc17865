package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

// PathRuleDTO is the wire shape of one internal/sandbox.PathRule.
type PathRuleDTO struct {
	Prefix     string `json:"prefix" validate:"required"`
	AllowWrite bool   `json:"allow_write"`
}

// PolicySetDTO is the wire shape of GET/PUT /policy.
type PolicySetDTO struct {
	Name  string        `json:"name" validate:"required"`
	Rules []PathRuleDTO `json:"rules" validate:"dive"`
}

// PolicyStore is the read/write view onto policy sets the API needs.
type PolicyStore interface {
	GetPolicySet(name string) (PolicySetDTO, error)
	PutPolicySet(set PolicySetDTO) error
}

type PolicyHandler struct {
	store    PolicyStore
	validate *validator.Validate
}

func NewPolicyHandler(store PolicyStore) *PolicyHandler {
	return &PolicyHandler{store: store, validate: validator.New()}
}

const defaultPolicySetName = "default"

// Get handles GET /policy?name=NAME (defaults to "default").
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = defaultPolicySetName
	}
	set, err := h.store.GetPolicySet(name)
	if err != nil {
		NotFound(w, "policy set not found")
		return
	}
	writeJSONOK(w, set)
}

// Put handles PUT /policy: replaces a named policy set's rules wholesale.
// Requires an admin bearer token (wired in router.go); the semihosting
// protocol itself carries none of this — only the operator surface does.
func (h *PolicyHandler) Put(w http.ResponseWriter, r *http.Request) {
	var set PolicySetDTO
	if !decodeJSONBody(w, r, &set) {
		return
	}
	if err := h.validate.Struct(&set); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := h.store.PutPolicySet(set); err != nil {
		InternalServerError(w, "failed to save policy set")
		return
	}
	writeJSONOK(w, set)
}
