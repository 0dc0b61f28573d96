package vfs

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	assert.Equal(t, "/home/web_user/retroarch/userdata/content", l.Content())
	assert.Equal(t, "/home/web_user/retroarch/userdata/system", l.System())
	assert.Equal(t, "/home/web_user/retroarch/bundle/shaders/shaders_glsl", l.Shader())
	assert.Equal(t, "/home/web_user/retroarch/bundle/shaders/shaders_glsl/shaders", l.ShaderAssets())
	assert.Equal(t, "/home/web_user/retroarch/userdata/retroarch.cfg", l.ConfigFile())
	assert.Equal(t, "/home/web_user/retroarch/userdata/retroarch-core-options.cfg", l.CoreConfigFile())
	assert.Equal(t, "/home/web_user/retroarch/userdata/config/global.glslp", l.GlobalShaderPreset())
	assert.Equal(t, "/home/web_user/retroarch/userdata/saves/FCEUmm", l.SaveDir("FCEUmm"))
	assert.Equal(t, "/home/web_user/retroarch/userdata/states/FCEUmm", l.StateDir("FCEUmm"))
	assert.Len(t, l.Dirs(), 5)
}
