// internal/di/container_test.go
package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name string
}

func TestRegisterAndGet(t *testing.T) {
	c := NewContainer()

	svc := &fakeService{name: "player"}
	c.Register("player", svc)

	assert.Same(t, svc, c.Get("player"))
	assert.Nil(t, c.Get("missing"))
	assert.True(t, c.Has("player"))
	assert.False(t, c.Has("missing"))
}

func TestResolveReturnsTypedService(t *testing.T) {
	c := NewContainer()
	c.Register("player", &fakeService{name: "player"})

	svc, err := Resolve[*fakeService](c, "player")
	require.NoError(t, err)
	assert.Equal(t, "player", svc.name)
}

func TestResolveMissingService(t *testing.T) {
	c := NewContainer()

	_, err := Resolve[*fakeService](c, "player")
	assert.ErrorContains(t, err, "服务未注册")
}

func TestResolveWrongType(t *testing.T) {
	c := NewContainer()
	c.Register("player", "不是服务实例")

	_, err := Resolve[*fakeService](c, "player")
	assert.ErrorContains(t, err, "服务类型不符")
}

func TestRemoveAndClear(t *testing.T) {
	c := NewContainer()
	c.Register("player", &fakeService{})
	c.Register("script", &fakeService{})

	c.Remove("player")
	assert.False(t, c.Has("player"))
	assert.True(t, c.Has("script"))

	c.Clear()
	assert.Empty(t, c.GetNames())
}

func TestGetNamesSorted(t *testing.T) {
	c := NewContainer()
	c.Register("user", &fakeService{})
	c.Register("asset", &fakeService{})
	c.Register("player", &fakeService{})

	assert.Equal(t, []string{"asset", "player", "user"}, c.GetNames())
}
