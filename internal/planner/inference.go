package planner

import (
	"path/filepath"
	"sort"

	"github.com/bub-build/bub/internal/buberr"
)

// inferLibraries is the binary/library inference pass of spec §4.6: run
// once, at augmentation time, for a DynamicLib or Exe whose objects have
// just become up-to-date. It walks the dependency-cache closure of
// those objects to resolve which static libs, dynamic libs, and system
// libs the final link command needs, in link-line order.
func (p *Planner) inferLibraries(target *Node) (addedDeps bool, err error) {
	binary := target.Binary
	action := target.Action

	visitedStatic := make(map[*Node]bool)
	visitedDynamic := make(map[*Node]bool)
	sysLibs := make(map[string]*SysLib)
	var staticLibs, dynamicLibs []*Node

	var accumulate func(obj *Node) error
	accumulate = func(obj *Node) error {
		deps, _ := p.Cache.Get(obj.Path)
		for _, depPath := range deps {
			if filepath.IsAbs(depPath) {
				continue // system header: no owning Binary
			}
			file, ok := p.ByPath[filepath.Join(p.SrcDir, depPath)]
			if !ok {
				continue // unresolved; construction-time cache handling already flagged this action dirty
			}
			container, ok := p.binaryByContent[file]
			if !ok {
				return buberr.NewUnknownEntity(buberr.Origin{}, "no Binary owns %s, depended on by %s", file.Trail, obj.Trail)
			}
			for name, lib := range container.ReqSysLibs {
				sysLibs[name] = lib
			}
			if container.Node == target {
				continue
			}
			if container.Kind != BinaryStaticLib {
				return buberr.NewRuleViolation(buberr.Origin{}, "inference expected %s to be packaged in a StaticLib, found %s", file.Trail, container.Node.Trail)
			}

			dlib, hasDlib := p.dynLibByContent[container.Node]
			if hasDlib && dlib.Node.Number < target.Number {
				if visitedDynamic[dlib.Node] {
					continue
				}
				visitedDynamic[dlib.Node] = true
				dynamicLibs = append(dynamicLibs, dlib.Node)
				for _, sl := range dlib.Contains {
					for _, o := range sl.Binary.Objs {
						if err := accumulate(o); err != nil {
							return err
						}
					}
				}
				continue
			}

			if binary.Kind == BinaryDynamicLib {
				return buberr.NewRuleViolation(buberr.Origin{}, "dynamic-lib %s cannot link bare static-lib %s; package it into an earlier dynamic-lib first", target.Trail, container.Node.Trail)
			}
			if visitedStatic[container.Node] {
				continue
			}
			visitedStatic[container.Node] = true
			staticLibs = append(staticLibs, container.Node)
			for _, o := range container.Objs {
				if err := accumulate(o); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, obj := range binary.Objs {
		if err := accumulate(obj); err != nil {
			return false, err
		}
	}

	before := len(action.Depends)
	for _, sl := range staticLibs {
		if err := action.AddDependency(sl); err != nil {
			return false, err
		}
	}
	for _, dl := range dynamicLibs {
		if err := action.AddDependency(dl); err != nil {
			return false, err
		}
	}
	addedDeps = len(action.Depends) != before

	sort.Slice(staticLibs, func(i, j int) bool { return staticLibs[i].Number > staticLibs[j].Number })
	sort.Slice(dynamicLibs, func(i, j int) bool { return dynamicLibs[i].Number > dynamicLibs[j].Number })
	var sysLibList []*SysLib
	for _, s := range sysLibs {
		sysLibList = append(sysLibList, s)
	}
	sort.Slice(sysLibList, func(i, j int) bool { return sysLibList[i].Number > sysLibList[j].Number })

	var libs []string
	for _, n := range staticLibs {
		libs = append(libs, n.Path)
	}
	for _, n := range dynamicLibs {
		libs = append(libs, n.Path)
	}
	for _, s := range sysLibList {
		libs = append(libs, s.Name)
	}
	action.Libs = libs
	return addedDeps, nil
}
