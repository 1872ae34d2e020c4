package static

/*
This file is generated! DO NOT EDIT
*/

var AppFileModes = map[string]int{
	"__init__.py":            420 /* 0644 */,
	"admin.py":               420 /* 0644 */,
	"apps.py-tpl":            420 /* 0644 */,
	"migrations/__init__.py": 420 /* 0644 */,
	"models.py":              420 /* 0644 */,
	"tests.py":               420 /* 0644 */,
	"urls.py":                420 /* 0644 */,
	"views.py":               420 /* 0644 */,
}
