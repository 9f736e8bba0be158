package location

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	geoclueBus       = "org.freedesktop.GeoClue2"
	geoclueManager   = "/org/freedesktop/GeoClue2/Manager"
	geoclueClientIfc = "org.freedesktop.GeoClue2.Client"
	geoclueLocIfc    = "org.freedesktop.GeoClue2.Location"

	// GCLUE_ACCURACY_LEVEL_CITY
	accuracyCity = uint32(4)
)

// GeoClue2Provider obtains the location from the GeoClue2 system service and
// follows it as it changes.
type GeoClue2Provider struct {
	// DesktopID identifies this daemon to the geolocation agent.
	DesktopID string

	conn *dbus.Conn
}

// NewGeoClue2Provider returns a provider registering as desktopID.
func NewGeoClue2Provider(desktopID string) *GeoClue2Provider {
	return &GeoClue2Provider{DesktopID: desktopID}
}

func (p *GeoClue2Provider) Name() string { return "geoclue2" }

// Start creates a GeoClue2 client, subscribes to LocationUpdated and starts
// it. Updates are delivered from a watcher goroutine until ctx is cancelled.
func (p *GeoClue2Provider) Start(ctx context.Context, update UpdateFunc) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	p.conn = conn

	manager := conn.Object(geoclueBus, dbus.ObjectPath(geoclueManager))
	var clientPath dbus.ObjectPath
	if err := manager.CallWithContext(ctx, "org.freedesktop.GeoClue2.Manager.GetClient", 0).Store(&clientPath); err != nil {
		return fmt.Errorf("failed to obtain geoclue client: %w", err)
	}

	client := conn.Object(geoclueBus, clientPath)
	if err := client.SetProperty(geoclueClientIfc+".DesktopId", dbus.MakeVariant(p.DesktopID)); err != nil {
		return fmt.Errorf("failed to set desktop id: %w", err)
	}
	if err := client.SetProperty(geoclueClientIfc+".RequestedAccuracyLevel", dbus.MakeVariant(accuracyCity)); err != nil {
		return fmt.Errorf("failed to set accuracy level: %w", err)
	}

	if err := conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(clientPath),
		dbus.WithMatchInterface(geoclueClientIfc),
		dbus.WithMatchMember("LocationUpdated"),
	); err != nil {
		return fmt.Errorf("failed to subscribe to location updates: %w", err)
	}

	ch := make(chan *dbus.Signal, 8)
	conn.Signal(ch)

	if err := client.CallWithContext(ctx, geoclueClientIfc+".Start", 0).Err; err != nil {
		return fmt.Errorf("failed to start geoclue client: %w", err)
	}

	go p.watch(ctx, client, ch, update)
	return nil
}

func (p *GeoClue2Provider) watch(ctx context.Context, client dbus.BusObject, ch chan *dbus.Signal, update UpdateFunc) {
	defer client.Call(geoclueClientIfc+".Stop", 0)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			if sig.Name != geoclueClientIfc+".LocationUpdated" || len(sig.Body) != 2 {
				continue
			}
			newPath, ok := sig.Body[1].(dbus.ObjectPath)
			if !ok {
				continue
			}
			loc, err := p.readLocation(newPath)
			if err != nil {
				continue
			}
			if loc.Valid() {
				update(loc)
			}
		}
	}
}

func (p *GeoClue2Provider) readLocation(path dbus.ObjectPath) (Location, error) {
	obj := p.conn.Object(geoclueBus, path)
	var loc Location
	if err := obj.StoreProperty(geoclueLocIfc+".Latitude", &loc.Latitude); err != nil {
		return Location{}, fmt.Errorf("failed to read latitude: %w", err)
	}
	if err := obj.StoreProperty(geoclueLocIfc+".Longitude", &loc.Longitude); err != nil {
		return Location{}, fmt.Errorf("failed to read longitude: %w", err)
	}
	return loc, nil
}
