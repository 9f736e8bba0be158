// Package dbusapi exposes the daemon over D-Bus: cookie-based override
// methods, read/write properties and batched change signals.
package dbusapi

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/mkarjala/duskd/internal/daemon"
	"github.com/mkarjala/duskd/internal/location"
	"github.com/mkarjala/duskd/internal/override"
)

const (
	// ObjectPath is where the service object is exported.
	ObjectPath = dbus.ObjectPath("/fi/mkarjala/Duskd")
	// DefaultBusName is the well-known name claimed on the session bus.
	DefaultBusName = "fi.mkarjala.Duskd"

	propsInterface = "org.freedesktop.DBus.Properties"
)

// Service is the D-Bus front-end. Method handlers run on godbus worker
// goroutines; they mutate engine state and wake the loop, never recompute
// themselves.
type Service struct {
	engine  *daemon.Engine
	logger  *slog.Logger
	busName string

	conn *dbus.Conn
}

// NewService returns an unstarted D-Bus service for engine.
func NewService(engine *daemon.Engine, busName string, logger *slog.Logger) *Service {
	if busName == "" {
		busName = DefaultBusName
	}
	return &Service{engine: engine, logger: logger, busName: busName}
}

// Start connects to the session bus, exports the service object and claims
// the well-known name.
func (s *Service) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, ObjectPath, s.busName); err != nil {
		return fmt.Errorf("failed to export service: %w", err)
	}
	props := &properties{service: s}
	if err := conn.Export(props, ObjectPath, propsInterface); err != nil {
		return fmt.Errorf("failed to export properties: %w", err)
	}
	if err := conn.Export(introspect.NewIntrospectable(s.node()), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := conn.RequestName(s.busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name %s: %w", s.busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("name %s already taken", s.busName)
	}
	s.logger.Info("D-Bus service started", "name", s.busName)
	return nil
}

// Close releases the bus name and connection.
func (s *Service) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.ReleaseName(s.busName)
	return s.conn.Close()
}

// NotifyStateChanged implements daemon.Notifier by emitting one
// PropertiesChanged signal naming every property that changed in the
// recompute.
func (s *Service) NotifyStateChanged(changed map[string]interface{}, _ daemon.State) {
	if s.conn == nil {
		return
	}
	variants := make(map[string]dbus.Variant, len(changed))
	for name, value := range changed {
		variants[name] = dbus.MakeVariant(value)
	}
	err := s.conn.Emit(ObjectPath, propsInterface+".PropertiesChanged",
		s.busName, variants, []string{})
	if err != nil {
		s.logger.Warn("Failed to emit PropertiesChanged", "error", err)
	}
}

func (s *Service) dbusError(err error) *dbus.Error {
	switch {
	case errors.Is(err, override.ErrUnknownCookie):
		return dbus.NewError(s.busName+".UnknownCookie", []interface{}{"Unknown cookie value"})
	case errors.Is(err, override.ErrAlreadyEnforced):
		return dbus.NewError(s.busName+".AlreadyEnforced", []interface{}{"Another client is already enforcing"})
	case errors.Is(err, override.ErrInvalidArgument):
		return dbus.NewError(s.busName+".InvalidArgument", []interface{}{err.Error()})
	}
	return dbus.MakeFailedError(err)
}

// AcquireCookie registers a client program and returns its cookie.
func (s *Service) AcquireCookie(program string) (int32, *dbus.Error) {
	cookie := s.engine.Resolver().Acquire(program)
	s.logger.Info("Cookie acquired", "program", program, "cookie", cookie)
	return int32(cookie), nil
}

// ReleaseCookie retires a cookie and drops its overrides.
func (s *Service) ReleaseCookie(cookie int32) *dbus.Error {
	changed, err := s.engine.Resolver().Release(uint32(cookie))
	if err != nil {
		return s.dbusError(err)
	}
	if changed {
		s.engine.Wake()
	}
	return nil
}

// Inhibit forces the neutral baseline on behalf of cookie.
func (s *Service) Inhibit(cookie int32) *dbus.Error {
	changed, err := s.engine.Resolver().Inhibit(uint32(cookie))
	if err != nil {
		return s.dbusError(err)
	}
	if changed {
		s.engine.Wake()
	}
	return nil
}

// Uninhibit withdraws cookie's inhibit request.
func (s *Service) Uninhibit(cookie int32) *dbus.Error {
	changed, err := s.engine.Resolver().Uninhibit(uint32(cookie))
	if err != nil {
		return s.dbusError(err)
	}
	if changed {
		s.engine.Wake()
	}
	return nil
}

// EnforceTemperature pins the display temperature on behalf of cookie.
func (s *Service) EnforceTemperature(cookie int32, temperature uint32, priority bool) *dbus.Error {
	err := s.engine.Resolver().EnforceTemperature(uint32(cookie), int(temperature), priority)
	if err != nil {
		return s.dbusError(err)
	}
	if program, perr := s.engine.Resolver().Program(uint32(cookie)); perr == nil {
		s.logger.Info("Temperature enforced", "program", program, "temperature", temperature)
	}
	s.engine.Wake()
	return nil
}

// UnenforceTemperature drops cookie's temperature enforcement.
func (s *Service) UnenforceTemperature(cookie int32, priority bool) *dbus.Error {
	changed, err := s.engine.Resolver().UnenforceTemperature(uint32(cookie), priority)
	if err != nil {
		return s.dbusError(err)
	}
	if changed {
		s.engine.Wake()
	}
	return nil
}

// EnforceLocation pins the scheduling location on behalf of cookie.
func (s *Service) EnforceLocation(cookie int32, latitude, longitude float64) *dbus.Error {
	loc := location.Location{Latitude: latitude, Longitude: longitude}
	if err := s.engine.Resolver().EnforceLocation(uint32(cookie), loc); err != nil {
		return s.dbusError(err)
	}
	s.engine.Wake()
	return nil
}

// UnenforceLocation drops cookie's location enforcement.
func (s *Service) UnenforceLocation(cookie int32) *dbus.Error {
	changed, err := s.engine.Resolver().UnenforceLocation(uint32(cookie))
	if err != nil {
		return s.dbusError(err)
	}
	if changed {
		s.engine.Wake()
	}
	return nil
}

// GetElevation returns the current solar elevation in degrees.
func (s *Service) GetElevation() (float64, *dbus.Error) {
	return s.engine.GetElevation(), nil
}

// BrightnessUp steps the brightness override up.
func (s *Service) BrightnessUp() *dbus.Error {
	s.engine.AdjustBrightness(0.1)
	return nil
}

// BrightnessDown steps the brightness override down.
func (s *Service) BrightnessDown() *dbus.Error {
	s.engine.AdjustBrightness(-0.1)
	return nil
}

// properties implements org.freedesktop.DBus.Properties by hand so that
// change signals stay batched per recompute instead of one per property.
type properties struct {
	service *Service
}

func (p *properties) get(name string) (interface{}, bool) {
	state := p.service.engine.Snapshot()
	switch name {
	case "Inhibited":
		return state.Inhibited, true
	case "Period":
		return state.Period, true
	case "Temperature":
		return uint32(state.Temperature), true
	case "CurrentLatitude":
		return state.CurrentLatitude, true
	case "CurrentLongitude":
		return state.CurrentLongitude, true
	case "TemperatureDay":
		return uint32(state.TemperatureDay), true
	case "TemperatureNight":
		return uint32(state.TemperatureNight), true
	case "Brightness":
		return state.Brightness, true
	}
	return nil, false
}

// Get implements org.freedesktop.DBus.Properties.Get.
func (p *properties) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	if iface != p.service.busName {
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown interface %s", iface))
	}
	v, ok := p.get(name)
	if !ok {
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property %s", name))
	}
	return dbus.MakeVariant(v), nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll.
func (p *properties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != p.service.busName {
		return nil, dbus.MakeFailedError(fmt.Errorf("unknown interface %s", iface))
	}
	names := []string{
		"Inhibited", "Period", "Temperature",
		"CurrentLatitude", "CurrentLongitude",
		"TemperatureDay", "TemperatureNight", "Brightness",
	}
	out := make(map[string]dbus.Variant, len(names))
	for _, name := range names {
		if v, ok := p.get(name); ok {
			out[name] = dbus.MakeVariant(v)
		}
	}
	return out, nil
}

// Set implements org.freedesktop.DBus.Properties.Set for the writable
// properties.
func (p *properties) Set(iface, name string, value dbus.Variant) *dbus.Error {
	if iface != p.service.busName {
		return dbus.MakeFailedError(fmt.Errorf("unknown interface %s", iface))
	}
	s := p.service
	invalid := func() *dbus.Error {
		return dbus.NewError(s.busName+".InvalidArgument",
			[]interface{}{fmt.Sprintf("invalid value for %s", name)})
	}
	switch name {
	case "TemperatureDay":
		kelvin, ok := value.Value().(uint32)
		if !ok {
			return invalid()
		}
		if err := s.engine.SetTemperatureDay(int(kelvin)); err != nil {
			return invalid()
		}
	case "TemperatureNight":
		kelvin, ok := value.Value().(uint32)
		if !ok {
			return invalid()
		}
		if err := s.engine.SetTemperatureNight(int(kelvin)); err != nil {
			return invalid()
		}
	case "Brightness":
		brightness, ok := value.Value().(float64)
		if !ok {
			return invalid()
		}
		if err := s.engine.SetBrightness(brightness); err != nil {
			return invalid()
		}
	default:
		return dbus.MakeFailedError(fmt.Errorf("property %s is not writable", name))
	}
	return nil
}

func (s *Service) node() *introspect.Node {
	return &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: propsInterface,
				Methods: []introspect.Method{
					{Name: "Get", Args: []introspect.Arg{
						{Name: "interface", Type: "s", Direction: "in"},
						{Name: "property", Type: "s", Direction: "in"},
						{Name: "value", Type: "v", Direction: "out"},
					}},
					{Name: "GetAll", Args: []introspect.Arg{
						{Name: "interface", Type: "s", Direction: "in"},
						{Name: "properties", Type: "a{sv}", Direction: "out"},
					}},
					{Name: "Set", Args: []introspect.Arg{
						{Name: "interface", Type: "s", Direction: "in"},
						{Name: "property", Type: "s", Direction: "in"},
						{Name: "value", Type: "v", Direction: "in"},
					}},
				},
				Signals: []introspect.Signal{
					{Name: "PropertiesChanged", Args: []introspect.Arg{
						{Name: "interface", Type: "s"},
						{Name: "changed_properties", Type: "a{sv}"},
						{Name: "invalidated_properties", Type: "as"},
					}},
				},
			},
			{
				Name: s.busName,
				Methods: []introspect.Method{
					{Name: "AcquireCookie", Args: []introspect.Arg{
						{Name: "program", Type: "s", Direction: "in"},
						{Name: "cookie", Type: "i", Direction: "out"},
					}},
					{Name: "ReleaseCookie", Args: []introspect.Arg{
						{Name: "cookie", Type: "i", Direction: "in"},
					}},
					{Name: "Inhibit", Args: []introspect.Arg{
						{Name: "cookie", Type: "i", Direction: "in"},
					}},
					{Name: "Uninhibit", Args: []introspect.Arg{
						{Name: "cookie", Type: "i", Direction: "in"},
					}},
					{Name: "EnforceTemperature", Args: []introspect.Arg{
						{Name: "cookie", Type: "i", Direction: "in"},
						{Name: "temperature", Type: "u", Direction: "in"},
						{Name: "priority", Type: "b", Direction: "in"},
					}},
					{Name: "UnenforceTemperature", Args: []introspect.Arg{
						{Name: "cookie", Type: "i", Direction: "in"},
						{Name: "priority", Type: "b", Direction: "in"},
					}},
					{Name: "EnforceLocation", Args: []introspect.Arg{
						{Name: "cookie", Type: "i", Direction: "in"},
						{Name: "latitude", Type: "d", Direction: "in"},
						{Name: "longitude", Type: "d", Direction: "in"},
					}},
					{Name: "UnenforceLocation", Args: []introspect.Arg{
						{Name: "cookie", Type: "i", Direction: "in"},
					}},
					{Name: "GetElevation", Args: []introspect.Arg{
						{Name: "elevation", Type: "d", Direction: "out"},
					}},
					{Name: "BrightnessUp"},
					{Name: "BrightnessDown"},
				},
				Properties: []introspect.Property{
					{Name: "Inhibited", Type: "b", Access: "read"},
					{Name: "Period", Type: "s", Access: "read"},
					{Name: "Temperature", Type: "u", Access: "read"},
					{Name: "CurrentLatitude", Type: "d", Access: "read"},
					{Name: "CurrentLongitude", Type: "d", Access: "read"},
					{Name: "TemperatureDay", Type: "u", Access: "readwrite"},
					{Name: "TemperatureNight", Type: "u", Access: "readwrite"},
					{Name: "Brightness", Type: "d", Access: "readwrite"},
				},
			},
		},
	}
}
