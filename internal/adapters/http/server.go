package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"brandguard/internal/detectors"
	"brandguard/internal/domain"
	"brandguard/internal/ports"
	brandsvc "brandguard/internal/services/brands"
	scansvc "brandguard/internal/services/scanner"
)

// Server is the thin REST boundary over the services and repositories. No
// detection logic lives here.
type Server struct {
	brands     *brandsvc.Service
	scanner    *scansvc.Service
	detections ports.DetectionRepository
	names      *detectors.NameDetector
	log        zerolog.Logger
}

func New(brands *brandsvc.Service, scanner *scansvc.Service, detections ports.DetectionRepository, names *detectors.NameDetector, log zerolog.Logger) *Server {
	return &Server{brands: brands, scanner: scanner, detections: detections, names: names, log: log}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/brands", s.handleCreateBrand)
		r.Get("/brands", s.handleListBrands)
		r.Get("/brands/{id}", s.handleGetBrand)
		r.Put("/brands/{id}", s.handleUpdateBrand)
		r.Post("/brands/{id}/scans", s.handleEnqueueScan)
		r.Get("/scans/{id}", s.handleGetScan)
		r.Get("/detections", s.handleListDetections)
		r.Patch("/detections/{id}", s.handleUpdateDetection)
		r.Post("/quick-check", s.handleQuickCheck)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateBrand(w http.ResponseWriter, r *http.Request) {
	var in brandsvc.Input
	if !s.decode(w, r, &in) {
		return
	}
	b, err := s.brands.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, brandDoc(b))
}

func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	bs, err := s.brands.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	docs := make([]map[string]any, 0, len(bs))
	for _, b := range bs {
		docs = append(docs, brandDoc(b))
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetBrand(w http.ResponseWriter, r *http.Request) {
	b, err := s.brands.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeNotFoundOr500(w, err)
		return
	}
	writeJSON(w, http.StatusOK, brandDoc(b))
}

func (s *Server) handleUpdateBrand(w http.ResponseWriter, r *http.Request) {
	var in brandsvc.Input
	if !s.decode(w, r, &in) {
		return
	}
	b, err := s.brands.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, brandDoc(b))
}

func (s *Server) handleEnqueueScan(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Sources []string `json:"sources"`
	}
	if !s.decode(w, r, &in) {
		return
	}
	jobID, err := s.scanner.Enqueue(r.Context(), chi.URLParam(r, "id"), in.Sources)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"scan_id": jobID})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	job, err := s.scanner.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeNotFoundOr500(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scanDoc(job))
}

func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ds, err := s.detections.ListDetections(r.Context(), ports.DetectionFilter{
		BrandID:   q.Get("brand_id"),
		RiskLevel: q.Get("risk_level"),
		Status:    q.Get("status"),
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	docs := make([]map[string]any, 0, len(ds))
	for _, d := range ds {
		docs = append(docs, detectionDoc(d))
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleUpdateDetection(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if !s.decode(w, r, &in) {
		return
	}
	if in.Status != domain.DetectionConfirmed && in.Status != domain.DetectionFalsePositive {
		s.writeError(w, http.StatusBadRequest, errors.New("status must be confirmed or false_positive"))
		return
	}
	if err := s.detections.UpdateDetectionStatus(r.Context(), chi.URLParam(r, "id"), in.Status); err != nil {
		s.writeNotFoundOr500(w, err)
		return
	}
	d, err := s.detections.GetDetection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeNotFoundOr500(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detectionDoc(d))
}

// handleQuickCheck runs the name detector synchronously against an ad-hoc
// candidate, without persisting anything.
func (s *Server) handleQuickCheck(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BrandName string `json:"brand_name"`
		AppName   string `json:"app_name"`
		PackageID string `json:"package_id"`
		BrandPkg  string `json:"brand_package_id"`
	}
	if !s.decode(w, r, &in) {
		return
	}
	if in.BrandName == "" || in.AppName == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("brand_name and app_name are required"))
		return
	}

	nameOut := s.names.Compare(in.BrandName, in.AppName)
	resp := map[string]any{
		"name_similarity": nameOut.Score,
		"reasons":         reasonList(nameOut.Reasons),
		"risk_level":      detectors.ConfidenceRisk(nameOut.Score),
	}
	if kws := detectors.SuspiciousKeywords(in.AppName); len(kws) > 0 {
		resp["suspicious_keywords"] = kws
	}
	if in.PackageID != "" && in.BrandPkg != "" {
		pkgOut := s.names.ComparePackages(in.BrandPkg, in.PackageID)
		resp["package_similarity"] = pkgOut.Score
		resp["package_reasons"] = reasonList(pkgOut.Reasons)
	}
	writeJSON(w, http.StatusOK, resp)
}

// helpers

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) writeNotFoundOr500(w http.ResponseWriter, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func reasonList(rs []string) []string {
	if rs == nil {
		return []string{}
	}
	return rs
}

func brandDoc(b domain.Brand) map[string]any {
	return map[string]any{
		"id":             b.ID,
		"name":           b.Name,
		"package_ids":    b.PackageIDs,
		"icon_urls":      b.IconURLs,
		"developer_name": b.DeveloperName,
		"certificates":   b.Certificates,
		"created_at":     b.CreatedAt.Format(time.RFC3339),
		"updated_at":     b.UpdatedAt.Format(time.RFC3339),
	}
}

func scanDoc(j domain.ScanJob) map[string]any {
	doc := map[string]any{
		"id":               j.ID,
		"brand_id":         j.BrandID,
		"sources":          j.Sources,
		"status":           j.Status,
		"apps_scanned":     j.AppsScanned,
		"detections_found": j.DetectionsFound,
		"created_at":       j.CreatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		doc["started_at"] = j.StartedAt.Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		doc["completed_at"] = j.CompletedAt.Format(time.RFC3339)
	}
	if j.ErrorMessage != nil {
		doc["error_message"] = *j.ErrorMessage
	}
	return doc
}

func detectionDoc(d domain.Detection) map[string]any {
	doc := map[string]any{
		"id":                 d.ID,
		"brand_id":           d.BrandID,
		"candidate_id":       d.CandidateID,
		"icon_score":         d.IconScore,
		"name_score":         d.NameScore,
		"certificate_match":  d.CertificateMatch,
		"review_fraud_score": d.ReviewFraudScore,
		"confidence":         d.Confidence,
		"risk_level":         d.RiskLevel,
		"reasons":            reasonList(d.Reasons),
		"status":             d.Status,
		"detected_at":        d.DetectedAt.Format(time.RFC3339),
	}
	if d.ConfirmedAt != nil {
		doc["confirmed_at"] = d.ConfirmedAt.Format(time.RFC3339)
	}
	return doc
}
