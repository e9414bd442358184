package session

// LocalEndpointBuilder constructs a LocalEndpoint with a fluent API,
// mirroring the registry's builder-style construction pattern.
type LocalEndpointBuilder struct {
	endpoint LocalEndpoint
}

// NewLocalEndpointBuilder starts from a caller-supplied 4-byte endpoint
// id, the only field with no sensible default.
func NewLocalEndpointBuilder(id [4]byte) *LocalEndpointBuilder {
	return &LocalEndpointBuilder{endpoint: LocalEndpoint{ID: id, DeviceType: DeviceTypeUnknown}}
}

// WithName sets the display name advertised in the ConnectionRequest.
func (b *LocalEndpointBuilder) WithName(name string) *LocalEndpointBuilder {
	b.endpoint.Name = name
	return b
}

// WithDeviceType sets the device-type tag.
func (b *LocalEndpointBuilder) WithDeviceType(t DeviceType) *LocalEndpointBuilder {
	b.endpoint.DeviceType = t
	return b
}

// Build returns the constructed LocalEndpoint.
func (b *LocalEndpointBuilder) Build() LocalEndpoint {
	return b.endpoint
}
