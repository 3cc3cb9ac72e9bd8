package ride

import (
	"errors"
	"strings"
)

// VehicleClass is the class of vehicle a driver operates and a rider requests.
type VehicleClass string

const (
	VehicleBike VehicleClass = "BIKE"
	VehicleAuto VehicleClass = "AUTO"
	VehicleCar  VehicleClass = "CAR"
)

var ErrInvalidVehicleClass = errors.New("invalid vehicle class")

// ParseVehicleClass normalizes (uppercases+trims) and validates a vehicle class string.
func ParseVehicleClass(in string) (VehicleClass, error) {
	vc := VehicleClass(strings.ToUpper(strings.TrimSpace(in)))
	if vc.Valid() {
		return vc, nil
	}
	return "", ErrInvalidVehicleClass
}

// Valid reports whether vehicleClass is one of the allowed vehicle class constants.
func (vehicleClass VehicleClass) Valid() bool {
	switch vehicleClass {
	case VehicleBike, VehicleAuto, VehicleCar:
		return true
	default:
		return false
	}
}

// String returns the string representation of the VehicleClass.
func (vehicleClass VehicleClass) String() string {
	return string(vehicleClass)
}
