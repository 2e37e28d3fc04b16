/*
Copyright The indexctl Contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package configparser contains a simple parser for configuration structs
whose fields are annotated with the `env` tag. The values are taken from
a data map, usually the content of the configuration file, and from the
process environment, which has the precedence.

	type Data struct {
		ApplicationName string        `json:"applicationName" env:"APP_NAME"`
		CanaryHostIDs   []string      `json:"canaryHostIDs" env:"INDEX_TEST_HOST_IDS"`
		PollInterval    time.Duration `json:"pollInterval" env:"POLL_INTERVAL"`
	}

The supported field types are string, bool, int, time.Duration and
string slices, whose values are comma separated.
*/
package configparser

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/indexctl/indexctl/pkg/management/log"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ReadConfigMap reads the configuration from the environment and the
// passed data map. Each field is reset to the corresponding one in
// defaults first, and kept that way when the read value is malformed
func ReadConfigMap(target interface{}, defaults interface{}, data map[string]string) {
	ReadConfigMapWithEnv(target, defaults, data, OsEnvironment{})
}

// ReadConfigMapWithEnv is like ReadConfigMap, reading the environment
// from the passed source
func ReadConfigMapWithEnv(
	target interface{},
	defaults interface{},
	data map[string]string,
	env EnvironmentSource,
) {
	ensurePointerToStruct(target)
	ensurePointerToStruct(defaults)

	targetValue := reflect.ValueOf(target).Elem()
	defaultsValue := reflect.ValueOf(defaults).Elem()
	t := targetValue.Type()
	if t != defaultsValue.Type() {
		panic(fmt.Sprintf("target and defaults must have the same type, found %v and %v",
			t, defaultsValue.Type()))
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		targetField := targetValue.Field(i)
		if !targetField.CanSet() {
			continue
		}

		// Start from the default value
		targetField.Set(defaultsValue.Field(i))

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := data[envName]
		if envValue := env.Getenv(envName); envValue != "" {
			value = envValue
		}
		if value == "" {
			continue
		}

		if err := setField(targetField, value); err != nil {
			log.Warning("Skipping invalid configuration value",
				"field", field.Name, "key", envName, "value", value, "error", err)
		}
	}
}

func setField(target reflect.Value, value string) error {
	if target.Type() == durationType {
		duration, err := parseDuration(value)
		if err != nil {
			return err
		}
		target.SetInt(int64(duration))
		return nil
	}

	switch target.Kind() {
	case reflect.String:
		target.SetString(value)

	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		target.SetBool(boolValue)

	case reflect.Int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		target.SetInt(int64(intValue))

	case reflect.Slice:
		if target.Type().Elem().Kind() != reflect.String {
			panic(fmt.Sprintf("unsupported slice type %v", target.Type()))
		}
		target.Set(reflect.ValueOf(splitAndTrim(value)))

	default:
		panic(fmt.Sprintf("unsupported field type %v", target.Type()))
	}

	return nil
}

// parseDuration accepts Go durations and plain integers, which are seconds
func parseDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(value)
}

func ensurePointerToStruct(value interface{}) {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("expected a pointer to a struct, found %T", value))
	}
}

// splitAndTrim slices a comma separated string removing the blanks
// around each element and the empty ones
func splitAndTrim(commaSeparatedList string) []string {
	list := strings.Split(commaSeparatedList, ",")
	result := make([]string, 0, len(list))
	for _, item := range list {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
