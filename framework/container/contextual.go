package container

// ContextualBuilder implements the fluent contextual override API.
//
//	c.When("photos").Needs("filesystem").Give("filesystem.s3")
//
// While "photos" is being built, its service arguments (declared or
// autowired) asking for "filesystem" resolve "filesystem.s3" instead.
type ContextualBuilder struct {
	container *Container
	consumer  string
	needs     string
}

// Needs names the service id the consumer asks for.
func (b *ContextualBuilder) Needs(id string) *ContextualBuilder {
	b.needs = id
	return b
}

// Give names the service resolved in its place.
func (b *ContextualBuilder) Give(id string) {
	b.container.mu.Lock()
	defer b.container.mu.Unlock()

	if _, ok := b.container.contextual[b.consumer]; !ok {
		b.container.contextual[b.consumer] = make(map[string]string)
	}
	b.container.contextual[b.consumer][b.needs] = id
}

// GiveValue registers value as an instance and gives it.
//
//	c.When("uploader").Needs("storage.path").GiveValue("/tmp/photos")
func (b *ContextualBuilder) GiveValue(value any) {
	id := "contextual." + b.consumer + "." + b.needs
	b.container.SetInstance(id, value)
	b.Give(id)
}
