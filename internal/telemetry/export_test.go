package telemetry

var Sampler = sampler
