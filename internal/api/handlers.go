package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/fusion"
	"github.com/banshee-data/motion.fusion/internal/httputil"
	"github.com/banshee-data/motion.fusion/internal/kinematics"
	"github.com/banshee-data/motion.fusion/internal/linalg"
	"github.com/banshee-data/motion.fusion/internal/units"
)

// KinematicsResponse holds the derived motion state. Angular vectors are
// in the requested angle unit, linear ones in SI units.
type KinematicsResponse struct {
	Position            [3]float64 `json:"position"`
	Velocity            [3]float64 `json:"velocity"`
	Acceleration        [3]float64 `json:"acceleration"`
	Jerk                [3]float64 `json:"jerk"`
	Orientation         [3]float64 `json:"orientation"`
	AngularVelocity     [3]float64 `json:"angularVelocity"`
	AngularAcceleration [3]float64 `json:"angularAcceleration"`
	AngularJerk         [3]float64 `json:"angularJerk"`
	Offset              [3]float64 `json:"offset"`
}

type StateResponse struct {
	Tick        uint64             `json:"tick"`
	Timestamp   time.Time          `json:"timestamp"`
	Listening   bool               `json:"listening"`
	Ready       bool               `json:"ready"`
	Converged   bool               `json:"converged"`
	DeltaT      float64            `json:"delta_t"`
	Units       string             `json:"units"`
	AngleUnits  string             `json:"angle_units"`
	Speed       float64            `json:"speed"`
	PlanarSpeed float64            `json:"planar_speed"`
	Raw         db.Vectors         `json:"raw"`
	Smoothed    db.Vectors         `json:"smoothed,omitempty"`
	Kinematics  KinematicsResponse `json:"kinematics"`
	Estimate    []float64          `json:"estimate,omitempty"`
	EstimateErr string             `json:"estimate_err,omitempty"`
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) (*fusion.State, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return nil, false
	}
	st := s.pipeline.Latest()
	if st == nil {
		httputil.NotFound(w, "no state yet: start listening and wait for a tick")
		return nil, false
	}
	return st, true
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.latest(w, r)
	if !ok {
		return
	}

	speedUnits := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			httputil.BadRequest(w, "invalid units: expected one of "+units.GetValidUnitsString())
			return
		}
		speedUnits = u
	}
	angleUnits := units.Radians
	if a := r.URL.Query().Get("angles"); a != "" {
		if a != units.Radians && a != units.Degrees {
			httputil.BadRequest(w, "invalid angles: expected rad or deg")
			return
		}
		angleUnits = a
	}

	k := st.Kinematics
	v := k.Velocity()
	resp := StateResponse{
		Tick:        st.Tick,
		Timestamp:   st.Timestamp,
		Listening:   s.pipeline.Listening(),
		Ready:       st.Ready(),
		Converged:   st.Converged(),
		DeltaT:      k.DeltaT(),
		Units:       speedUnits,
		AngleUnits:  angleUnits,
		Speed:       units.ConvertSpeed(v.Magnitude(), speedUnits),
		PlanarSpeed: units.ConvertSpeed(math.Hypot(v.X, v.Y), speedUnits),
		Raw:         db.VectorsOf(st.Raw),
		Smoothed:    db.VectorsOf(st.Smoothed),
		Kinematics:  kinematicsResponse(k, angleUnits),
	}
	if resp.Converged {
		resp.Estimate = st.Estimate.Mean
	}
	if st.EstimateErr != nil {
		resp.EstimateErr = st.EstimateErr.Error()
	}
	httputil.WriteJSONOK(w, resp)
}

func kinematicsResponse(k *kinematics.DeviceKinematics, angleUnits string) KinematicsResponse {
	angular := func(v linalg.Vector3) [3]float64 {
		return [3]float64{
			units.ConvertAngle(v.X, angleUnits),
			units.ConvertAngle(v.Y, angleUnits),
			units.ConvertAngle(v.Z, angleUnits),
		}
	}
	return KinematicsResponse{
		Position:            array(k.Position()),
		Velocity:            array(k.Velocity()),
		Acceleration:        array(k.Acceleration()),
		Jerk:                array(k.Jerk()),
		Orientation:         angular(k.Orientation()),
		AngularVelocity:     angular(k.AngularVelocity()),
		AngularAcceleration: angular(k.AngularAcceleration()),
		AngularJerk:         angular(k.AngularJerk()),
		Offset:              array(k.Offset()),
	}
}

func array(v linalg.Vector3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

type transitionResponse struct {
	Tick   uint64      `json:"tick"`
	DeltaT float64     `json:"delta_t"`
	Size   int         `json:"size"`
	Rows   [][]float64 `json:"rows"`
}

func (s *Server) showTransition(w http.ResponseWriter, r *http.Request) {
	st, ok := s.latest(w, r)
	if !ok {
		return
	}
	m, err := st.Kinematics.StateTransitionMatrix()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	n, _ := m.Dims()
	httputil.WriteJSONOK(w, transitionResponse{
		Tick:   st.Tick,
		DeltaT: st.Kinematics.DeltaT(),
		Size:   n,
		Rows:   m.Rows(),
	})
}

type listenRequest struct {
	Notes string `json:"notes"`
}

type listenResponse struct {
	Listening bool       `json:"listening"`
	Recording bool       `json:"recording"`
	Run       *uuid.UUID `json:"run,omitempty"`
}

func (s *Server) startListening(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	var req listenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if s.pipeline.Listening() {
		httputil.Conflict(w, "already listening")
		return
	}

	s.pipeline.StartListening()
	if s.rec != nil {
		if err := s.rec.Start(req.Notes); err != nil {
			logf("failed to start recording: %v", err)
		}
	}
	httputil.WriteJSONOK(w, listenResponse{Listening: true, Recording: s.recording()})
}

func (s *Server) stopListening(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	if !s.pipeline.Listening() {
		httputil.Conflict(w, "not listening")
		return
	}

	resp := listenResponse{}
	if s.rec != nil {
		if id := s.rec.Stop(); id != uuid.Nil {
			resp.Run = &id
		}
	}
	s.pipeline.StopListening()
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) recording() bool {
	return s.rec != nil && s.rec.Active()
}

func (s *Server) resetEstimator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	s.pipeline.ResetEstimator()
	httputil.WriteJSONOK(w, map[string]bool{"reset": true})
}

type ratesResponse struct {
	Rates          map[string]float64 `json:"rates_hz"`
	TickIntervalMS float64            `json:"tick_interval_ms"`
	Listening      bool               `json:"listening"`
}

func (s *Server) showRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, ratesResponse{
		Rates:          s.pipeline.RefreshRates(),
		TickIntervalMS: float64(s.pipeline.TickInterval()) / float64(time.Millisecond),
		Listening:      s.pipeline.Listening(),
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.runs == nil {
		httputil.NotFound(w, "no database configured")
		return
	}
	q := r.URL.Query()
	tz := q.Get("tz")
	if tz != "" && !units.IsTimezoneValid(tz) {
		httputil.BadRequest(w, "invalid tz")
		return
	}

	if id := q.Get("id"); id != "" {
		runID, err := uuid.Parse(id)
		if err != nil {
			httputil.BadRequest(w, "invalid run id")
			return
		}
		run, err := s.runs.GetRun(runID)
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return
		} else if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, localRun(run, tz))
		return
	}

	limit := 100
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.runs.Runs(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	out := make([]db.Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, localRun(run, tz))
	}
	httputil.WriteJSONOK(w, out)
}

// localRun renders run times in tz, which was validated by the caller.
func localRun(run db.Run, tz string) db.Run {
	run.StartedAt, _ = units.ConvertTime(run.StartedAt, tz)
	if run.EndedAt != nil {
		ended, _ := units.ConvertTime(*run.EndedAt, tz)
		run.EndedAt = &ended
	}
	return run
}
