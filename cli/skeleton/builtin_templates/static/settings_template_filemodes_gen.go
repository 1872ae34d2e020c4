package static

/*
This file is generated! DO NOT EDIT
*/

var SettingsFileModes = map[string]int{
	"base_settings.py-tpl":   420 /* 0644 */,
	"local_settings.py-tpl":  420 /* 0644 */,
	"remote_settings.py-tpl": 420 /* 0644 */,
}
