package static

/*
This file is generated! DO NOT EDIT
*/

var AdminFileModes = map[string]int{
	"__init__.py":  420 /* 0644 */,
	"admin.py-tpl": 420 /* 0644 */,
	"apps.py":      420 /* 0644 */,
}
