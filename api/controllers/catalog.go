package controllers

import (
	"net/http"

	"github.com/angelmondragon/smilequote-backend/api/responses"
	"github.com/angelmondragon/smilequote-backend/api/validators"
	"github.com/angelmondragon/smilequote-backend/internal/catalog"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
)

// CatalogList serves GET /api/v1/packages and /api/v1/special-offers. An
// optional clinic_id query narrows the list to what that clinic offers.
func CatalogList(svc catalog.Service, kind enums.PackageKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, err := validators.ParseQueryUUID(r, "clinic_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), kind, clinicID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, catalog.FromModels(rows))
	}
}

func CatalogGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "packageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pkg, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, catalog.FromModel(pkg))
	}
}
