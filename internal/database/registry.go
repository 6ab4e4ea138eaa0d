package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// ContractVersion is the version of the Client contract defined by this
// package. Adapters declare which contract version they were built against;
// the registry refuses adapters outside the supported range.
const ContractVersion = "1.0.0"

// supportedContracts is the semver range of adapter contract versions this
// build accepts.
const supportedContracts = "^1.0"

// ErrIncompatibleDriver is returned when an adapter declares a contract
// version outside the supported range.
var ErrIncompatibleDriver = fmt.Errorf("driver contract version incompatible (supported: %s)", supportedContracts)

// DriverInfo identifies a registered backend adapter.
type DriverInfo struct {
	// Name is the identifier used to open the driver (e.g. "memory", "sqlite").
	Name string

	// ContractVersion is the Client contract version the adapter targets.
	ContractVersion string
}

// OpenFunc constructs a connected Client from a driver-specific DSN.
type OpenFunc func(dsn string) (Client, error)

type registeredDriver struct {
	info DriverInfo
	open OpenFunc
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]registeredDriver)
)

// Register makes an adapter available under info.Name. It is called from
// adapter init functions. Registration fails when the name is taken or the
// declared contract version falls outside the supported range.
func Register(info DriverInfo, open OpenFunc) error {
	if info.Name == "" {
		return NewError(KindValidation, "driver name cannot be empty")
	}
	if open == nil {
		return NewError(KindValidation, "driver open function cannot be nil")
	}
	if err := checkContract(info.ContractVersion); err != nil {
		return err
	}

	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[info.Name]; dup {
		return Errorf(KindConflict, "driver %q already registered", info.Name)
	}
	drivers[info.Name] = registeredDriver{info: info, open: open}
	return nil
}

// MustRegister is Register for init functions; it panics on failure.
func MustRegister(info DriverInfo, open OpenFunc) {
	if err := Register(info, open); err != nil {
		panic(err)
	}
}

// Open constructs a Client using the named driver.
func Open(name, dsn string) (Client, error) {
	driversMu.RLock()
	d, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, WrapError(KindValidation, fmt.Sprintf("driver %q", name), ErrUnknownDriver)
	}
	return d.open(dsn)
}

// Drivers returns the registered driver names in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkContract(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return Errorf(KindValidation, "invalid driver contract version %q: %v", version, err)
	}
	constraint, err := semver.NewConstraint(supportedContracts)
	if err != nil {
		return WrapError(KindUnknown, "parsing supported contract range", err)
	}
	if !constraint.Check(v) {
		return WrapError(KindValidation, fmt.Sprintf("version %s", version), ErrIncompatibleDriver)
	}
	return nil
}
