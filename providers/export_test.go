package providers

// unregister removes a registration added by a test.
func unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registrations, name)
}
