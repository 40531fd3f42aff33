package http

import (
	"errors"
	"fmt"
	stdhttp "net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"
)

const mimeMsgPack = "application/msgpack"

// launchRequest mirrors the launch form. Pointers tell "absent" from zero.
type launchRequest struct {
	BottleVolumeL    *float64 `json:"bottle_volume_l" binding:"required,gt=0"`
	BottleDiameterCM *float64 `json:"bottle_diameter_cm" binding:"required,gt=0"`
	NozzleDiameterCM *float64 `json:"nozzle_diameter_cm" binding:"required,gte=0"`
	WaterVolumeL     *float64 `json:"water_volume_l" binding:"required"`
	AirPressurePSI   *float64 `json:"air_pressure_psi" binding:"required,gte=0"`
	SoapAmount       *float64 `json:"soap_amount" binding:"required,gte=0"`
	WindSpeedMS      *float64 `json:"wind_speed_ms" binding:"required"`
	TemperatureC     *float64 `json:"temperature_c" binding:"required"`
	Player           *string  `json:"player" binding:"required"`
	EventsEnabled    *bool    `json:"events_enabled"`
}

func (r launchRequest) params() domain.LaunchParameters {
	return domain.LaunchParameters{
		BottleVolumeL:    *r.BottleVolumeL,
		BottleDiameterCM: *r.BottleDiameterCM,
		NozzleDiameterCM: *r.NozzleDiameterCM,
		WaterVolumeL:     *r.WaterVolumeL,
		AirPressurePSI:   *r.AirPressurePSI,
		SoapAmount:       *r.SoapAmount,
		WindSpeedMS:      *r.WindSpeedMS,
		TemperatureC:     *r.TemperatureC,
		Player:           *r.Player,
		EventsEnabled:    lo.FromPtrOr(r.EventsEnabled, true),
	}
}

type trajectoryView struct {
	T            []float64 `json:"t" msgpack:"t"`
	X            []float64 `json:"x" msgpack:"x"`
	Y            []float64 `json:"y" msgpack:"y"`
	MaxAltitudeM float64   `json:"max_altitude_m" msgpack:"max_altitude_m"`
	RangeM       float64   `json:"range_m" msgpack:"range_m"`
}

type launchResponse struct {
	OK         bool                 `json:"ok" msgpack:"ok"`
	Trajectory trajectoryView       `json:"trajectory" msgpack:"trajectory"`
	Summary    domain.LaunchSummary `json:"summary" msgpack:"summary"`
}

func newLaunchResponse(out domain.LaunchOutcome) launchResponse {
	samples := out.Result.Trajectory
	return launchResponse{
		OK: true,
		Trajectory: trajectoryView{
			T:            lo.Map(samples, func(s domain.TrajectorySample, _ int) float64 { return s.T }),
			X:            lo.Map(samples, func(s domain.TrajectorySample, _ int) float64 { return s.X }),
			Y:            lo.Map(samples, func(s domain.TrajectorySample, _ int) float64 { return s.Y }),
			MaxAltitudeM: out.Result.MaxAltitudeM,
			RangeM:       out.Result.RangeM,
		},
		Summary: out.Summary,
	}
}

var registerValidation sync.Once

// setupValidation reports json field names and checks the nozzle fits the bottle.
func setupValidation() {
	registerValidation.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterStructValidation(func(sl validator.StructLevel) {
			r := sl.Current().Interface().(launchRequest)
			if r.NozzleDiameterCM == nil || r.BottleDiameterCM == nil {
				return
			}
			if *r.NozzleDiameterCM > *r.BottleDiameterCM {
				sl.ReportError(r.NozzleDiameterCM, "nozzle_diameter_cm", "NozzleDiameterCM", "ltefield", "bottle_diameter_cm")
			}
		}, launchRequest{})
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "ltefield":
		return "must not exceed " + fe.Param()
	default:
		return fmt.Sprintf("failed on %q", fe.Tag())
	}
}

// bindError turns a binding failure into the 400 body.
func bindError(err error) gin.H {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		return gin.H{"ok": false, "error": "validation failed", "fields": fields}
	}
	return gin.H{"ok": false, "error": "invalid request body: " + err.Error()}
}

func launchHandler(svc *app.LaunchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req launchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Msg("launch rejected")
			c.JSON(stdhttp.StatusBadRequest, bindError(err))
			return
		}

		out := svc.Launch(c.Request.Context(), req.params())
		resp := newLaunchResponse(out)

		if c.NegotiateFormat(gin.MIMEJSON, mimeMsgPack) == mimeMsgPack {
			b, err := msgpack.Marshal(resp)
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("msgpack encode")
				c.JSON(stdhttp.StatusInternalServerError, gin.H{"ok": false, "error": "encode failed"})
				return
			}
			c.Data(stdhttp.StatusOK, mimeMsgPack, b)
			return
		}
		c.JSON(stdhttp.StatusOK, resp)
	}
}
