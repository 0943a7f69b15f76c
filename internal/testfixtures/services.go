package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// ServiceDeps captures dependencies shared by the booking and room services.
type ServiceDeps struct {
	Store       application.Store
	Policy      application.Policy
	Events      application.EventSink
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

func (f *ServiceFactory) resolve(deps ServiceDeps) ServiceDeps {
	if deps.IDGenerator == nil {
		deps.IDGenerator = f.IDGenerator.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	if deps.Logger == nil {
		deps.Logger = DiscardLogger()
	}
	return deps
}

// NewBookingService builds a booking service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewBookingService(deps ServiceDeps) *application.BookingService {
	deps = f.resolve(deps)
	return application.NewBookingServiceWithLogger(deps.Store, deps.Policy, deps.Events, deps.IDGenerator, deps.Now, deps.Logger)
}

// NewRoomService builds a room service using the supplied dependencies.
func (f *ServiceFactory) NewRoomService(deps ServiceDeps) *application.RoomService {
	deps = f.resolve(deps)
	return application.NewRoomServiceWithLogger(deps.Store, deps.Policy, deps.Events, deps.IDGenerator, deps.Now, deps.Logger)
}
